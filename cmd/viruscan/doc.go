// Package viruscan provides the command-line interface for the viruscan
// service. It serves the scan functions over HTTP, scans local files, talks
// to a running server and inspects signature databases.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/lefred/mysql-component-viruscan/cmd/viruscan"
//	func main() { viruscan.Execute() }
package viruscan
