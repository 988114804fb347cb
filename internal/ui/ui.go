// Package ui embeds the static viewer assets: a terminal page driven by the
// ticket flow and a small dashboard for hub mode.
package ui

import "embed"

//go:embed static
var Assets embed.FS
