package shader

// wgslTypeLayout holds the byte size and alignment of a WGSL type in host-shareable memory.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is one member of a WGSL struct.
type parsedField struct {
	name     string
	typeName string
}

// parsedStruct is a WGSL struct block extracted during reflection.
type parsedStruct struct {
	name   string
	fields []parsedField
}
