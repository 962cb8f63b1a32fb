//go:build odbc

package main

import _ "github.com/ruslano69/invmirror/pkg/adapters/odbc"
