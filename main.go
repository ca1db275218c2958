// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/corext/corext/cmd/corext"

func main() {
	cmd.Execute()
}
