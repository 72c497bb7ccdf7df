// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected struct source, and collects a declarations list that the compute backend
// uses to bind resources by identity instead of by hard-coded index.
//
// The pre-processor maintains two registries:
//   - structRegistry: maps AnnotationArg keys to embedded WGSL sources and their
//     resolved type names. Used by @oxy:include (to inject the source) and
//     @oxy:group (to resolve the WGSL type name in the generated declaration).
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-lpv/engine/camera"
	"github.com/Carmen-Shannon/oxy-lpv/engine/lpv"
)

// registryEntry pairs an embedded WGSL source with the WGSL type name it declares.
// Helper libraries have an empty Type.
type registryEntry struct {
	Source string
	Type   string
}

type preProcessor struct {
	structRegistry       map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group and provider annotations during a Process call.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with generated declarations or injected sources while collecting
// a declarations list for resource wiring.
type PreProcessor interface {
	// Process pre-processes WGSL source. @oxy:include annotations are replaced with the
	// registered source, @oxy:group annotations with a generated @group/@binding declaration,
	// and @oxy:provider annotations are only recorded.
	//
	// The declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed, repeated or references an unknown type
	Process(source string) (string, error)

	// Declarations returns the group and provider annotations collected during the most
	// recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with every LPV struct and helper library registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgCamera:               {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
			AnnotationArgLpvGridConfig:        {Source: lpv.GPULpvGridConfigSource, Type: "LpvGridConfig"},
			AnnotationArgLayeredLpvGridConfig: {Source: lpv.GPULayeredLpvGridConfigSource, Type: "LayeredLpvGridConfig"},
			AnnotationArgLpvLightConfig:       {Source: lpv.GPULpvLightConfigSource, Type: "LpvLightConfig"},
			AnnotationArgRsmTexel:             {Source: lpv.GPURsmTexelSource, Type: "RsmTexel"},
			AnnotationArgGBufferInfo:          {Source: lpv.GPUGBufferInfoSource, Type: "GBufferInfo"},
			AnnotationArgPropagationParams:    {Source: lpv.GPUPropagationParamsSource, Type: "PropagationParams"},
			annotationArgSH:                   {Source: lpv.SHFunctionsSource},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)
	slots := make(map[[2]int]int)

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		if a.Group != nil {
			slot := [2]int{*a.Group, *a.Binding}
			if prev, ok := slots[slot]; ok {
				return "", fmt.Errorf("line %d: @group(%d) @binding(%d) already declared on line %d", i+1, slot[0], slot[1], prev)
			}
			slots[slot] = i + 1
		}

		switch a.Type {
		case annotationTypeInclude:
			// a struct included twice would be a WGSL redeclaration
			if included[a.Args[0]] {
				continue
			}
			included[a.Args[0]] = true
			out = append(out, strings.TrimRight(p.structRegistry[a.Args[0]].Source, "\n"))
		case AnnotationTypeBindingGroup:
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			varName := string(a.Args[1])
			var wgslType string
			if inner, ok := strings.CutPrefix(string(a.Args[2]), "array<"); ok {
				inner = strings.TrimSuffix(inner, ">")
				wgslType = fmt.Sprintf("array<%s>", p.structRegistry[AnnotationArg(inner)].Type)
			} else {
				wgslType = p.structRegistry[a.Args[2]].Type
			}

			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, varName, wgslType))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeProvider:
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
