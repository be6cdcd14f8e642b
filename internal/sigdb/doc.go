// Package sigdb reads a virus signature directory.
//
// A directory holds hash signature files (.hdb for MD5, .hsb for SHA-256),
// body signature files (.ndb), YARA rule files (.yar, .yara) and an optional
// viruscan.info header. Fingerprint summarizes the directory's metadata so a
// caller can tell cheaply whether anything changed since the last load; Load
// parses the signature files into a Database for a scan backend to compile.
package sigdb
