package simulation

import (
	_ "embed"
)

// reflectComputeSource is the compute program of the compute-dispatch model. Each invocation
// advances one particle from the input role to the output role.
//
//go:embed assets/reflect.wgsl
var reflectComputeSource string

// reflectVertexSource is the stream-out vertex program. Its outPosition and outVelocity
// varyings are captured into the next role.
//
//go:embed assets/reflect.vert
var reflectVertexSource string

// discardFragmentSource pairs with reflectVertexSource; rasterization is discarded while it runs.
//
//go:embed assets/discard.frag
var discardFragmentSource string
