package rules

import (
	"fmt"
	"math"
	"os"
	"time"

	"wisefido-health/internal/models"

	"gopkg.in/yaml.v3"
)

// Bounds 上下限（可缺省）
type Bounds struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Rules 引擎规则集
// 默认阈值、危急倍数、临界边距、服药宽限期、合理值范围
type Rules struct {
	DefaultRanges       map[models.VitalType]Bounds  `yaml:"default_ranges"`
	CriticalMultiplier  float64                      `yaml:"critical_multiplier"`
	CriticalMultipliers map[models.VitalType]float64 `yaml:"critical_multipliers"`
	NearBoundaryMargin  float64                      `yaml:"near_boundary_margin"`
	DoseGracePeriod     time.Duration                `yaml:"dose_grace_period"`
	Plausibility        map[models.VitalType]Bounds  `yaml:"plausibility"`
	MissedDoseSeverity  models.Severity              `yaml:"missed_dose_severity"`
}

func bounds(min, max float64) Bounds {
	return Bounds{Min: &min, Max: &max}
}

// Default 系统默认规则
func Default() *Rules {
	return &Rules{
		DefaultRanges: map[models.VitalType]Bounds{
			models.VitalSystolic:    bounds(110, 140),
			models.VitalDiastolic:   bounds(70, 90),
			models.VitalHeartRate:   bounds(60, 100),
			models.VitalGlucose:     bounds(70, 130),
			models.VitalTemperature: bounds(97.0, 99.5),
		},
		CriticalMultiplier: 1.3,
		CriticalMultipliers: map[models.VitalType]float64{
			models.VitalSystolic: 1.15,
		},
		NearBoundaryMargin: 5,
		DoseGracePeriod:    60 * time.Minute,
		Plausibility: map[models.VitalType]Bounds{
			models.VitalSystolic:    bounds(0, 300),
			models.VitalDiastolic:   bounds(0, 200),
			models.VitalHeartRate:   bounds(0, 300),
			models.VitalGlucose:     bounds(0, 1500),
			models.VitalTemperature: bounds(77, 113),
		},
		MissedDoseSeverity: models.SeverityMedium,
	}
}

// Load 从 YAML 文件加载规则（未出现的字段保留默认值）
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 规则并校验
// default_ranges/plausibility 中只给出一侧时，另一侧保留默认值
func Parse(data []byte) (*Rules, error) {
	r := Default()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	base := Default()
	mergeBounds(r.DefaultRanges, base.DefaultRanges)
	mergeBounds(r.Plausibility, base.Plausibility)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// mergeBounds yaml 会整体替换 map 中的 Bounds，这里补回未给出的一侧
func mergeBounds(dst, base map[models.VitalType]Bounds) {
	for vt, b := range dst {
		def, ok := base[vt]
		if !ok {
			continue
		}
		if b.Min == nil {
			b.Min = def.Min
		}
		if b.Max == nil {
			b.Max = def.Max
		}
		dst[vt] = b
	}
}

// Validate 校验规则
func (r *Rules) Validate() error {
	for vt, b := range r.DefaultRanges {
		if !vt.Valid() {
			return fmt.Errorf("default_ranges: unknown vital type %q", vt)
		}
		if err := b.validate(); err != nil {
			return fmt.Errorf("default_ranges.%s: %w", vt, err)
		}
	}
	for vt, b := range r.Plausibility {
		if !vt.Valid() {
			return fmt.Errorf("plausibility: unknown vital type %q", vt)
		}
		if err := b.validate(); err != nil {
			return fmt.Errorf("plausibility.%s: %w", vt, err)
		}
	}
	if !(r.CriticalMultiplier > 1) {
		return fmt.Errorf("critical_multiplier must be > 1, got %v", r.CriticalMultiplier)
	}
	for vt, m := range r.CriticalMultipliers {
		if !vt.Valid() {
			return fmt.Errorf("critical_multipliers: unknown vital type %q", vt)
		}
		if !(m > 1) {
			return fmt.Errorf("critical_multipliers.%s must be > 1, got %v", vt, m)
		}
	}
	if r.NearBoundaryMargin < 0 {
		return fmt.Errorf("near_boundary_margin must be >= 0")
	}
	if r.DoseGracePeriod < 0 {
		return fmt.Errorf("dose_grace_period must be >= 0")
	}
	if !r.MissedDoseSeverity.Valid() {
		return fmt.Errorf("missed_dose_severity: unknown severity %q", r.MissedDoseSeverity)
	}
	return nil
}

func (b Bounds) validate() error {
	for _, p := range []*float64{b.Min, b.Max} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return fmt.Errorf("bound must be finite")
		}
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return fmt.Errorf("min %v > max %v", *b.Min, *b.Max)
	}
	return nil
}

// DefaultRange 体征的系统默认范围
// 未配置的体征返回无界范围
func (r *Rules) DefaultRange(vt models.VitalType) models.Range {
	b := r.DefaultRanges[vt]
	return models.Range{Min: b.Min, Max: b.Max, Source: models.RangeSourceDefault}
}

// CriticalMultiplierFor 体征的危急倍数
func (r *Rules) CriticalMultiplierFor(vt models.VitalType) float64 {
	if m, ok := r.CriticalMultipliers[vt]; ok {
		return m
	}
	return r.CriticalMultiplier
}

// PlausibleBounds 体征的合理值范围
func (r *Rules) PlausibleBounds(vt models.VitalType) (Bounds, bool) {
	b, ok := r.Plausibility[vt]
	return b, ok
}
