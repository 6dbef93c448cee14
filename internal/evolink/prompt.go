package evolink

import (
	"fmt"
	"strings"
)

// FusionDirective prefixes every multi-reference generation so the fusion
// model keeps identity and garment construction intact.
const FusionDirective = "Take the person from the model reference (Photo 1) and dress them in the exact garment from the garment reference (Photo 2) with no other alterations. Preserve faces, poses, proportions, and camera framing exactly while copying the garment fabric, colors, prints, trims, and construction one-to-one."

// TryOnDirective is the default single-sentence instruction for virtual
// try-on when the caller supplies no prompt of their own.
const TryOnDirective = "Take the person from photo 1 and put on the exact outfit from photo 2, keeping the identity and pose unchanged."

// FabricPreset couples a display label with the texture hint fed to the
// model.
type FabricPreset struct {
	Label  string
	Prompt string
}

var FabricPresets = map[string]FabricPreset{
	"silk": {
		Label:  "Liquid silk",
		Prompt: "high-sheen silk charmeuse, fluid drape, soft highlights, minimal grain, luxury finish",
	},
	"denim": {
		Label:  "Deep indigo denim",
		Prompt: "rigid 12oz denim, visible twill weave, matte texture, structured seams",
	},
	"knit": {
		Label:  "Fine gauge knit",
		Prompt: "breathable knitwear, subtle ribbing, soft yarn detail, tactile stitch definition",
	},
}

// Knob ranges. Values outside are clamped, not rejected.
const (
	MinTextureStrength = 10
	MaxTextureStrength = 100
	MinPatternScale    = 40
	MaxPatternScale    = 200
	MinFitTightness    = 0
	MaxFitTightness    = 100

	DefaultTextureStrength = 70
	DefaultPatternScale    = 100
	DefaultFitTightness    = 50
)

// FabricJob describes a fabric material swap. The directive built from it is
// deterministic: the same fields always produce the same instruction text.
type FabricJob struct {
	FabricType         string
	FabricLabel        string
	PatternPrompt      string
	AdvancedPrompt     string
	TextureStrength    int
	PatternScale       int
	LockIdentity       bool
	PreserveBackground bool
}

// TryOnJob describes a virtual try-on over a model photo and a garment photo.
type TryOnJob struct {
	Prompt       string
	FitTightness int
}

func Clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Normalize clamps the numeric knobs into their documented ranges and
// resolves the label for preset fabrics.
func (j FabricJob) Normalize() FabricJob {
	if j.TextureStrength == 0 {
		j.TextureStrength = DefaultTextureStrength
	}
	if j.PatternScale == 0 {
		j.PatternScale = DefaultPatternScale
	}
	j.TextureStrength = Clamp(j.TextureStrength, MinTextureStrength, MaxTextureStrength)
	j.PatternScale = Clamp(j.PatternScale, MinPatternScale, MaxPatternScale)
	j.PatternPrompt = strings.TrimSpace(j.PatternPrompt)
	j.AdvancedPrompt = strings.TrimSpace(j.AdvancedPrompt)
	j.FabricLabel = strings.TrimSpace(j.FabricLabel)
	if preset, ok := FabricPresets[j.FabricType]; ok && j.FabricLabel == "" {
		j.FabricLabel = preset.Label
	}
	return j
}

// BuildFabricDirective assembles the instruction prompt for a fabric swap
// from fixed directive templates driven by the job's knobs.
func BuildFabricDirective(job FabricJob) string {
	job = job.Normalize()
	preset, hasPreset := FabricPresets[job.FabricType]
	fabricDescriptor := job.FabricLabel
	if fabricDescriptor == "" {
		fabricDescriptor = "textile"
	}
	textureHint := job.PatternPrompt
	if hasPreset {
		textureHint = preset.Prompt
	}

	segments := []string{
		"Preserve the exact person, pose, proportions, and styling from the reference photo.",
		"Keep the original garment category and silhouette identical: neckline/collar shape, placket, pocket placement, hem length, sleeve length, and fit must match the reference.",
		"Do not add or remove closures (buttons/zip), seams, or trims unless explicitly described. Do not turn sweaters into shirts or jackets, and do not change the garment type.",
	}
	if job.PreserveBackground {
		segments = append(segments, "Keep the background, lighting, and accessories untouched unless they clip with the garment.")
	} else {
		segments = append(segments, "Allow subtle background adjustments that reinforce the new fabric.")
	}
	if job.LockIdentity {
		segments = append(segments, "Do not change facial identity, limbs, or camera placement.")
	} else {
		segments = append(segments, "You may slightly adapt posing but keep the same character.")
	}
	segments = append(segments, strings.TrimSpace(fmt.Sprintf("Replace only the garment material with %s. %s", fabricDescriptor, textureHint)))
	if job.PatternPrompt != "" {
		segments = append(segments, fmt.Sprintf("Apply this print or weave direction: %s.", job.PatternPrompt))
	}
	if job.AdvancedPrompt != "" {
		segments = append(segments, fmt.Sprintf("Art direction notes: %s.", job.AdvancedPrompt))
	}
	segments = append(segments,
		fmt.Sprintf("Render the texture at %d%% strength with the pattern scaled to %d%%.", job.TextureStrength, job.PatternScale),
		"Honor the existing seams and construction; do not hallucinate new trims unless explicitly described.",
		"Ensure the fabric simulation stays consistent across the full garment.",
	)
	return strings.Join(segments, " ")
}

// BuildTryOnDirective assembles the try-on instruction. The fit tightness
// knob only adds a sentence when it departs from the neutral default.
func BuildTryOnDirective(job TryOnJob) string {
	prompt := strings.TrimSpace(job.Prompt)
	if prompt == "" {
		prompt = TryOnDirective
	}
	tightness := job.FitTightness
	if tightness == 0 {
		tightness = DefaultFitTightness
	}
	tightness = Clamp(tightness, MinFitTightness, MaxFitTightness)
	switch {
	case tightness == DefaultFitTightness:
		return prompt
	case tightness < DefaultFitTightness:
		return prompt + fmt.Sprintf(" Drape the garment loosely at %d%% fit tightness.", tightness)
	default:
		return prompt + fmt.Sprintf(" Fit the garment close to the body at %d%% fit tightness.", tightness)
	}
}
