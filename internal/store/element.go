package store

// ElementType is the closed set of objects the visual editor can place.
type ElementType string

const (
	ElementText   ElementType = "text"
	ElementButton ElementType = "button"
	ElementImage  ElementType = "image"
	ElementVideo  ElementType = "video"
)

// ValidElementType reports whether t is one of the supported variants.
func ValidElementType(t ElementType) bool {
	switch t {
	case ElementText, ElementButton, ElementImage, ElementVideo:
		return true
	}
	return false
}

// Animation names the entrance/idle animations an element may carry.
// Unrecognized values normalize to AnimationNone at the boundary instead
// of being ignored at render time.
type Animation string

const (
	AnimationNone         Animation = "none"
	AnimationFadeIn       Animation = "fade-in"
	AnimationFloat        Animation = "float"
	AnimationPulseGlow    Animation = "pulse-glow"
	AnimationSlideInRight Animation = "slide-in-right"
)

// NormalizeAnimation maps unknown animation names to AnimationNone.
func NormalizeAnimation(a Animation) Animation {
	switch a {
	case AnimationFadeIn, AnimationFloat, AnimationPulseGlow, AnimationSlideInRight:
		return a
	}
	return AnimationNone
}

// HoverAnimation names the pointer-hover effects an element may carry.
type HoverAnimation string

const (
	HoverNone  HoverAnimation = "none"
	HoverScale HoverAnimation = "scale"
	HoverGlow  HoverAnimation = "glow"
	HoverLift  HoverAnimation = "lift"
	HoverTilt  HoverAnimation = "tilt"
	HoverPulse HoverAnimation = "pulse"
)

// NormalizeHoverAnimation maps unknown hover animation names to HoverNone.
func NormalizeHoverAnimation(a HoverAnimation) HoverAnimation {
	switch a {
	case HoverScale, HoverGlow, HoverLift, HoverTilt, HoverPulse:
		return a
	}
	return HoverNone
}

// Position is an absolute pixel offset inside a section. Positions are
// intentionally unbounded; elements may be dragged off-viewport.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is an element's pixel extent.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Styles is the visual property set of an element. The animation fields
// are closed enums; everything else passes through to the renderer.
type Styles struct {
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	TextColor       string         `json:"textColor,omitempty"`
	FontSize        int            `json:"fontSize,omitempty"`
	FontWeight      string         `json:"fontWeight,omitempty"`
	BorderRadius    int            `json:"borderRadius,omitempty"`
	Padding         int            `json:"padding,omitempty"`
	GlowColor       string         `json:"glowColor,omitempty"`
	GlowIntensity   int            `json:"glowIntensity,omitempty"`
	Animation       Animation      `json:"animation,omitempty"`
	HoverAnimation  HoverAnimation `json:"hoverAnimation,omitempty"`
	HoverScale      float64        `json:"hoverScale,omitempty"`
	HoverGlow       bool           `json:"hoverGlow,omitempty"`
	HoverColor      string         `json:"hoverColor,omitempty"`
	BackgroundImage string         `json:"backgroundImage,omitempty"`
}

// Normalize clamps the closed-enum style fields to recognized values.
func (s Styles) Normalize() Styles {
	s.Animation = NormalizeAnimation(s.Animation)
	s.HoverAnimation = NormalizeHoverAnimation(s.HoverAnimation)
	return s
}

// Element is one editor-placed object overlaid on a section.
type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	Content  string      `json:"content"`
	Position Position    `json:"position"`
	Size     Size        `json:"size"`
	Styles   Styles      `json:"styles"`
	Link     string      `json:"link,omitempty"`
	ImageURL string      `json:"imageUrl,omitempty"`
	VideoURL string      `json:"videoUrl,omitempty"`
}

// Tab is a user-created navigation entry, shown in the header or sidebar.
type Tab struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	Elements []Element `json:"elements"`
	IsCustom bool      `json:"isCustom"`
}
