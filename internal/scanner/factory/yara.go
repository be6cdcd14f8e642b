//go:build yara

package factory

import (
	"github.com/lefred/mysql-component-viruscan/internal/scanner"
	"github.com/lefred/mysql-component-viruscan/internal/scanner/yara"
)

func init() {
	Register("yara", func(cfg Config) scanner.Backend { return yara.New(cfg.Include, cfg.ScanTimeout) })
}
