// Package company resolves stock symbols to company names from a static
// embedded table.
package company

import (
	"bufio"
	"bytes"
	_ "embed"
	"strings"
	"sync"
)

//go:embed companies.csv
var companiesCSV []byte

var (
	loadOnce sync.Once
	names    map[string]string
)

// Lookup returns the company name for a symbol. The second return value is
// false when the symbol is not in the table.
func Lookup(symbol string) (string, bool) {
	loadOnce.Do(load)
	name, ok := names[strings.ToUpper(strings.TrimSpace(symbol))]
	return name, ok
}

func load() {
	names = make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(companiesCSV))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		symbol, name, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		names[strings.ToUpper(symbol)] = name
	}
}
