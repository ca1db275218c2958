// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/corext/corext/internal/issue"
	"github.com/corext/corext/pkg/resource"
)

// issueStyle is the glamour style used for issue pages.
var issueStyle = "dark"

// formatError returns the one-line or verbose form of err.
func formatError(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	// The message log is only useful when asked for.
	if le, ok := err.(*resource.LoadError); ok && !verbose {
		return fmt.Sprintf("resource %s failed: %v", le.URL, le.Err)
	}
	return err.Error()
}

// renderError prints err and, when it maps to a catalog entry, the matching
// issue page.
func renderError(w io.Writer, err error, verbose bool) {
	if err == nil {
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatError(err, verbose))

	id := issue.Classify(err)
	if id == 0 {
		return
	}
	page := issue.Get(id)
	if page == nil {
		return
	}
	rendered, renderErr := page.Render(issueStyle)
	if renderErr != nil {
		log.Warn("failed to render issue page", "id", id, "err", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}
