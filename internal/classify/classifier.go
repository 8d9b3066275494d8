// Package classify infers a device-class label from collected data using
// tiered, weighted scoring. Every layer contributes independently and the
// contributions are summed, so a strong port signature can outvote a
// misleading hostname and vice versa.
package classify

import (
	"github.com/martinsuchenak/assetd/internal/model"
)

// classPrecedence breaks score ties. Fixed order, most consequential label
// first: misfiling a server hurts more than misfiling a phone.
var classPrecedence = []model.DeviceClass{
	model.ClassServer,
	model.ClassNetworkDevice,
	model.ClassWorkstation,
	model.ClassPrinter,
	model.ClassIPPhone,
	model.ClassHypervisor,
	model.ClassUnknown,
}

// Signals is the classifier's read-only view of a device pipeline.
type Signals struct {
	Scan     *model.PortScanResult
	Hostname string
	OSName   string
	OSFamily model.OSFamily
	Banners  []string
}

// SignalsFromRecord extracts classification signals from a device record
// in progress: the port scan, the hostname, and whatever the winning
// collection attempt contributed.
func SignalsFromRecord(rec *model.DeviceRecord) *Signals {
	s := &Signals{
		Scan:     &rec.Ports,
		Hostname: rec.Hostname,
		OSFamily: model.OSUnknown,
	}

	attrs := rec.Attributes
	if attrs == nil {
		if win := rec.WinningAttempt(); win != nil {
			attrs = win.Fields
		}
	}
	if attrs != nil {
		if s.Hostname == "" {
			s.Hostname = attrs["hostname"]
		}
		s.OSName = attrs["os_name"]
		if f := attrs["os_family"]; f != "" {
			s.OSFamily = model.OSFamily(f)
		}
		for _, key := range []string{"banner", "sys_descr", "http_server", "http_title"} {
			if v := attrs[key]; v != "" {
				s.Banners = append(s.Banners, v)
			}
		}
	}
	return s
}

// Classifier scores device classes from independent signal layers.
// Classification is pure: the same signals always yield the same triple.
type Classifier struct {
	rules     []Rule
	threshold float64
}

// New creates a classifier with the default rule set. Scores below the
// threshold yield ClassUnknown instead of a guess.
func New(threshold float64) *Classifier {
	return &Classifier{
		rules:     defaultRules(DefaultHostnamePatterns),
		threshold: threshold,
	}
}

// NewWithPatterns creates a classifier with a site-specific hostname
// pattern table.
func NewWithPatterns(threshold float64, patterns []HostnamePattern) *Classifier {
	return &Classifier{
		rules:     defaultRules(patterns),
		threshold: threshold,
	}
}

// Classify scores the record and returns the winning class, the OS family
// and the winning score as confidence. Confidence is reported even when
// the label falls back to Unknown so consumers can filter on it.
func (c *Classifier) Classify(rec *model.DeviceRecord) (model.DeviceClass, model.OSFamily, float64) {
	signals := SignalsFromRecord(rec)
	scores := c.Score(signals)

	best := model.ClassUnknown
	bestScore := 0.0
	for _, class := range classPrecedence {
		if score := scores[class]; score > bestScore {
			best, bestScore = class, score
		}
	}

	family := c.osFamily(signals)

	if bestScore < c.threshold {
		return model.ClassUnknown, family, bestScore
	}
	return best, family, bestScore
}

// Score computes the per-class totals: for every layer, the strongest
// matching rule per class contributes layerWeight * strength; layers sum.
func (c *Classifier) Score(signals *Signals) map[model.DeviceClass]float64 {
	type key struct {
		layer Layer
		class model.DeviceClass
	}
	layerBest := make(map[key]float64)

	for _, rule := range c.rules {
		if !rule.Match(signals) {
			continue
		}
		k := key{rule.Layer, rule.Class}
		if rule.Strength > layerBest[k] {
			layerBest[k] = rule.Strength
		}
	}

	scores := make(map[model.DeviceClass]float64)
	for k, strength := range layerBest {
		scores[k.class] += layerWeights[k.layer] * strength
	}
	return scores
}

// osFamily reconciles the collected OS hints with the port signature.
func (c *Classifier) osFamily(signals *Signals) model.OSFamily {
	if signals.OSFamily != "" && signals.OSFamily != model.OSUnknown {
		return signals.OSFamily
	}

	windows := signals.Scan.HasAnyPort(135, 139, 445, 3389)
	unix := signals.Scan.HasAnyPort(22, 111, 2049)
	switch {
	case windows && !unix:
		return model.OSWindows
	case unix && !windows:
		return model.OSLinux
	case signals.Scan.HasPort(161) && signals.Scan.HasPort(23):
		return model.OSNetworkOS
	}
	return model.OSUnknown
}
