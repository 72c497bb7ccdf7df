// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct and helper injection, bind group declaration, and resource
// provider registration. The parsed results are stored as Annotation values and consumed
// by the LPV compute backend to bind volumes and uniforms without hard-coded binding indices.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition or
	// helper library into the shader at the annotation site. It does not produce a declaration.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include lpv_grid_config
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration
	// and records it in the declarations list, keyed by its struct type.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 0 storage_uniform grid lpv_grid_config
	AnnotationTypeBindingGroup AnnotationType = "group"

	// AnnotationTypeProvider registers a resource identity for a hand-written binding that
	// follows the annotation. It is used for raw WGSL types such as array<vec4<f32>> which have
	// no registered struct. An optional role names the purpose of the binding.
	//
	// Syntax:
	//   //@oxy:provider <group> <binding> <provider_identity>
	//   //@oxy:provider <group> <binding> <provider_identity> <binding_role>
	//
	// Examples:
	//   //@oxy:provider 0 3 volume source
	//   //@oxy:provider 0 5 output
	AnnotationTypeProvider AnnotationType = "provider"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed (include, group, or provider).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include:  [0] = struct type key (e.g. "camera")
	//   - group:    [0] = address space, [1] = var name, [2] = WGSL type key
	//   - provider: [0] = provider identity (e.g. "volume"), [1] = binding role (optional, e.g. "source")
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group and provider annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group and provider annotations. Nil for include annotations.
	Binding *int
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Struct type arguments ──────────────────────────────────────────────────────
// These identify registered WGSL structs and helper libraries. Each maps to an embedded
// .wgsl asset next to the Go type it mirrors.

const (
	// AnnotationArgCamera identifies the CameraUniform struct.
	// Source: engine/camera/assets/camera_uniform.wgsl
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgLpvGridConfig identifies the single cascade LpvGridConfig struct.
	// Source: engine/lpv/assets/lpv_grid_config.wgsl
	AnnotationArgLpvGridConfig AnnotationArg = "lpv_grid_config"

	// AnnotationArgLayeredLpvGridConfig identifies the LayeredLpvGridConfig struct.
	// Source: engine/lpv/assets/layered_lpv_grid_config.wgsl
	AnnotationArgLayeredLpvGridConfig AnnotationArg = "layered_lpv_grid_config"

	// AnnotationArgLpvLightConfig identifies the per light, per face LpvLightConfig struct.
	// Source: engine/lpv/assets/lpv_light_config.wgsl
	AnnotationArgLpvLightConfig AnnotationArg = "lpv_light_config"

	// AnnotationArgRsmTexel identifies the RsmTexel struct of reflective shadow map buffers.
	// Source: engine/lpv/assets/rsm_texel.wgsl
	AnnotationArgRsmTexel AnnotationArg = "rsm_texel"

	// AnnotationArgGBufferInfo identifies the GBufferInfo struct.
	// Source: engine/lpv/assets/gbuffer_info.wgsl
	AnnotationArgGBufferInfo AnnotationArg = "gbuffer_info"

	// AnnotationArgPropagationParams identifies the PropagationParams struct.
	// Source: engine/lpv/assets/propagation_params.wgsl
	AnnotationArgPropagationParams AnnotationArg = "propagation_params"

	// annotationArgSH identifies the SH helper library. It is only valid in include annotations.
	// Source: engine/lpv/assets/sh.wgsl
	annotationArgSH AnnotationArg = "sh"
)

// ── Address space arguments ────────────────────────────────────────────────────

const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"

	// annotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

// ── Provider identity arguments ────────────────────────────────────────────────

const (
	// AnnotationArgVolume identifies an SH volume buffer (array<vec4<f32>>, channel major).
	AnnotationArgVolume AnnotationArg = "volume"

	// AnnotationArgGBuffer identifies a G-Buffer plane.
	AnnotationArgGBuffer AnnotationArg = "gbuffer"

	// AnnotationArgOutput identifies the per pixel output of a resolve.
	AnnotationArgOutput AnnotationArg = "output"
)

// ── Binding role arguments ─────────────────────────────────────────────────────

const (
	// AnnotationArgTarget is the volume an injection accumulates into.
	AnnotationArgTarget AnnotationArg = "target"

	// AnnotationArgScratch is the fixed point buffer an injection scatters into before it
	// is added to the target.
	AnnotationArgScratch AnnotationArg = "scratch"

	// AnnotationArgSource is the volume a propagation step reads.
	AnnotationArgSource AnnotationArg = "source"

	// AnnotationArgNext is the volume a propagation step writes for the following step.
	AnnotationArgNext AnnotationArg = "next"

	// AnnotationArgAccumulator is the volume a propagation step writes or blends into.
	AnnotationArgAccumulator AnnotationArg = "accumulator"

	// AnnotationArgGeometry is the occluder volume read by geometry aware propagation.
	AnnotationArgGeometry AnnotationArg = "geometry"

	// AnnotationArgCascade0 to AnnotationArgCascade3 are the accumulators read by a layered resolve.
	AnnotationArgCascade0 AnnotationArg = "cascade0"
	AnnotationArgCascade1 AnnotationArg = "cascade1"
	AnnotationArgCascade2 AnnotationArg = "cascade2"
	AnnotationArgCascade3 AnnotationArg = "cascade3"

	// AnnotationArgDepth is the G-Buffer depth plane.
	AnnotationArgDepth AnnotationArg = "depth"

	// AnnotationArgNormals is the G-Buffer normal plane.
	AnnotationArgNormals AnnotationArg = "normals"
)

// CascadeRole returns the binding role of the accumulator of a cascade.
//
// Parameters:
//   - cascade: the cascade index, 0 to 3
//
// Returns:
//   - AnnotationArg: the role
func CascadeRole(cascade int) AnnotationArg {
	return AnnotationArg(fmt.Sprintf("cascade%d", cascade))
}

// validStructTypes lists the AnnotationArg values accepted in @oxy:group annotations.
var validStructTypes = []AnnotationArg{
	AnnotationArgCamera,
	AnnotationArgLpvGridConfig,
	AnnotationArgLayeredLpvGridConfig,
	AnnotationArgLpvLightConfig,
	AnnotationArgRsmTexel,
	AnnotationArgGBufferInfo,
	AnnotationArgPropagationParams,
}

// validIncludes lists the AnnotationArg values accepted in @oxy:include annotations.
var validIncludes = append(slices.Clone(validStructTypes), annotationArgSH)

// validAddressSpaces lists the AnnotationArg values accepted as address spaces in @oxy:group annotations.
var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

// validProviderIdentities lists the AnnotationArg values accepted as @oxy:provider identities.
var validProviderIdentities = []AnnotationArg{
	AnnotationArgVolume,
	AnnotationArgGBuffer,
	AnnotationArgOutput,
}

// validBindingRoles lists the AnnotationArg values accepted as @oxy:provider binding roles.
var validBindingRoles = []AnnotationArg{
	AnnotationArgTarget,
	AnnotationArgScratch,
	AnnotationArgSource,
	AnnotationArgNext,
	AnnotationArgAccumulator,
	AnnotationArgGeometry,
	AnnotationArgCascade0,
	AnnotationArgCascade1,
	AnnotationArgCascade2,
	AnnotationArgCascade3,
	AnnotationArgDepth,
	AnnotationArgNormals,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validIncludes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeBindingGroup):
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires exactly five arguments (group, binding, address space, var name, struct type)", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		typeArg := args[5]
		elem := typeArg
		if inner, ok := strings.CutPrefix(typeArg, "array<"); ok {
			elem = strings.TrimSuffix(inner, ">")
		}
		if !slices.Contains(validStructTypes, AnnotationArg(elem)) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy group annotation", lineNum, elem)
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(typeArg)},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case string(AnnotationTypeProvider):
		if len(args) < 4 || len(args) > 5 {
			return nil, fmt.Errorf("line %d: @oxy provider annotation requires three or four arguments (group, binding, provider identity[, binding role])", lineNum)
		}
		group, binding, err := parseSlot(args[1], args[2], lineNum)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(validProviderIdentities, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown provider identity %q in @oxy provider annotation", lineNum, args[3])
		}
		providerArgs := []AnnotationArg{AnnotationArg(args[3])}
		if len(args) == 5 {
			if !slices.Contains(validBindingRoles, AnnotationArg(args[4])) {
				return nil, fmt.Errorf("line %d: unknown binding role %q in @oxy provider annotation", lineNum, args[4])
			}
			providerArgs = append(providerArgs, AnnotationArg(args[4]))
		}
		return &Annotation{
			Type:    AnnotationTypeProvider,
			Args:    providerArgs,
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

func parseSlot(groupArg, bindingArg string, lineNum int) (int, int, error) {
	group, err := strconv.Atoi(groupArg)
	if err != nil || group < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid group number %q", lineNum, groupArg)
	}
	binding, err := strconv.Atoi(bindingArg)
	if err != nil || binding < 0 {
		return 0, 0, fmt.Errorf("line %d: invalid binding number %q", lineNum, bindingArg)
	}
	return group, binding, nil
}
