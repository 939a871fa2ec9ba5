// Copyright (C) The Biomark Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import "github.com/biomark-bio/biomark"

func main() {
	biomark.Main()
}
