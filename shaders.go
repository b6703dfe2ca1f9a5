package termatlas

import _ "embed"

// Embedded WGSL shader sources, compiled at build time via go:embed.

//go:embed shaders/cell.wgsl
var cellShaderSource string

//go:embed shaders/retro.wgsl
var retroShaderSource string
