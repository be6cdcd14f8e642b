package main

import "github.com/lefred/mysql-component-viruscan/cmd/viruscan"

func main() { viruscan.Execute() }
