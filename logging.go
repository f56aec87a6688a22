// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import (
	"os"

	"github.com/charmbracelet/log"
)

// newComponentLogger builds a structured logger prefixed with the
// component name, the same charmbracelet/log usage katzenpost's
// client2/connection.go uses for per-connection logging.
func newComponentLogger(name string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "kineticnb." + name,
	})
}
