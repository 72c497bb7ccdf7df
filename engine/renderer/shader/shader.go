package shader

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

type shader struct {
	key                        string
	source                     string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	workGroupSize              [3]uint32
	entryPoint                 string
	declarations               []Annotation
}

// Shader is a pre-processed WGSL compute shader together with the reflection data the
// renderer needs to build its pipeline layout and bind groups.
type Shader interface {
	// Key returns the unique key of the shader.
	//
	// Returns:
	//   - string: the key
	Key() string

	// Source returns the pre-processed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source
	Source() string

	// BindGroupLayoutDescriptor returns the reflected layout of one bind group.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout, empty when the group is not declared
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors returns the reflected layouts of every bind group.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: layouts keyed by @group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName returns the variable name declared at a group and binding.
	//
	// Parameters:
	//   - group: the @group index
	//   - binding: the @binding index
	//
	// Returns:
	//   - string: the variable name, or "" when nothing is declared there
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName finds the binding of a variable within a group.
	//
	// Parameters:
	//   - group: the @group index
	//   - varName: the WGSL variable name
	//
	// Returns:
	//   - int: the binding index, or -1
	//   - bool: true when the variable was found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// Binding resolves a resource identity to its group and binding using the @oxy
	// declarations. A struct type matches @oxy:group declarations, and a provider identity
	// with an optional role matches @oxy:provider declarations.
	//
	// Parameters:
	//   - identity: a struct type or provider identity
	//   - role: the binding role, or "" for any
	//
	// Returns:
	//   - group: the @group index
	//   - binding: the @binding index
	//   - ok: true when a declaration matched
	Binding(identity, role AnnotationArg) (group, binding int, ok bool)

	// EntryPoint returns the name of the @compute function.
	//
	// Returns:
	//   - string: the entry point
	EntryPoint() string

	// WorkgroupSize returns the @workgroup_size of the entry point.
	//
	// Returns:
	//   - [3]uint32: the workgroup size, missing dimensions are 1
	WorkgroupSize() [3]uint32

	// Declarations returns the @oxy group and provider annotations of the source.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and reflects a WGSL compute shader.
// Panics when the source is empty, malformed or has no @compute entry point.
//
// Parameters:
//   - key: the unique key of the shader
//   - source: the raw WGSL source with @oxy annotations
//
// Returns:
//   - Shader: the processed shader
func NewShader(key string, source string) Shader {
	s, err := ParseShader(key, source)
	if err != nil {
		panic(fmt.Sprintf("shader: %v", err))
	}
	return s
}

// ParseShader is NewShader returning an error instead of panicking.
//
// Parameters:
//   - key: the unique key of the shader
//   - source: the raw WGSL source with @oxy annotations
//
// Returns:
//   - Shader: the processed shader
//   - error: if the source could not be processed
func ParseShader(key string, source string) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("%s has no source", key)
	}
	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("failed to pre-process %s: %w", key, err)
	}
	s := &shader{
		key:           key,
		source:        processed,
		workGroupSize: parseWorkgroupSize(processed),
		entryPoint:    parseEntryPoint(processed),
		declarations:  append([]Annotation(nil), pp.Declarations()...),
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("%s has no @compute entry point", key)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, wgpu.ShaderStageCompute)
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) Binding(identity, role AnnotationArg) (int, int, bool) {
	for _, d := range s.declarations {
		switch d.Type {
		case AnnotationTypeBindingGroup:
			if elementType(d.Args[2]) == identity && role == "" {
				return *d.Group, *d.Binding, true
			}
		case AnnotationTypeProvider:
			if d.Args[0] != identity {
				continue
			}
			if role == "" || (len(d.Args) > 1 && d.Args[1] == role) {
				return *d.Group, *d.Binding, true
			}
		}
	}
	return -1, -1, false
}

// elementType strips an array<> wrapper from a struct type argument.
func elementType(arg AnnotationArg) AnnotationArg {
	if inner, ok := strings.CutPrefix(string(arg), "array<"); ok {
		return AnnotationArg(strings.TrimSuffix(inner, ">"))
	}
	return arg
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
