package classify_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/martinsuchenak/assetd/internal/classify"
	"github.com/martinsuchenak/assetd/internal/model"
)

func record(ports []int, attrs map[string]string) *model.DeviceRecord {
	return &model.DeviceRecord{
		Address:    "10.0.0.1",
		Attributes: attrs,
		Ports:      model.PortScanResult{OpenPorts: ports},
	}
}

func TestClassifyLinuxWebServer(t *testing.T) {
	c := classify.New(0.3)

	class, family, confidence := c.Classify(record([]int{22, 80, 443}, map[string]string{
		"hostname":  "web-01",
		"os_family": "linux",
	}))

	if class != model.ClassServer {
		t.Errorf("Class = %s, want server", class)
	}
	if family != model.OSLinux {
		t.Errorf("OSFamily = %s, want linux", family)
	}
	if confidence <= 0.3 {
		t.Errorf("Confidence = %v, want above threshold", confidence)
	}
}

func TestClassifyPrinter(t *testing.T) {
	c := classify.New(0.3)

	class, _, _ := c.Classify(record([]int{9100, 631}, map[string]string{
		"hostname": "print-floor2",
		"banner":   "HP LaserJet",
	}))
	if class != model.ClassPrinter {
		t.Errorf("Class = %s, want printer", class)
	}
}

func TestClassifyNetworkDeviceFromSNMPBanner(t *testing.T) {
	c := classify.New(0.3)

	class, family, _ := c.Classify(record([]int{22, 23, 161}, map[string]string{
		"sys_descr": "Cisco IOS Software, C2960X",
		"os_family": "network_os",
	}))
	if class != model.ClassNetworkDevice {
		t.Errorf("Class = %s, want network_device", class)
	}
	if family != model.OSNetworkOS {
		t.Errorf("OSFamily = %s, want network_os", family)
	}
}

func TestClassifyWindowsWorkstation(t *testing.T) {
	c := classify.New(0.3)

	class, family, _ := c.Classify(record([]int{135, 139, 445}, map[string]string{
		"hostname":  "ws-jsmith",
		"os_name":   "Microsoft Windows 11 Pro",
		"os_family": "windows",
	}))
	if class != model.ClassWorkstation {
		t.Errorf("Class = %s, want workstation", class)
	}
	if family != model.OSWindows {
		t.Errorf("OSFamily = %s, want windows", family)
	}
}

func TestClassifyBelowThresholdIsUnknown(t *testing.T) {
	// Threshold above any score a lone weak signal can reach.
	c := classify.New(0.5)

	class, _, confidence := c.Classify(record([]int{23}, nil))
	if class != model.ClassUnknown {
		t.Errorf("Class = %s, want unknown below threshold", class)
	}
	if confidence <= 0 {
		t.Error("Confidence should still report the best score")
	}
	if confidence >= 0.5 {
		t.Errorf("Confidence = %v, expected below the 0.5 threshold", confidence)
	}
}

func TestClassifyNoSignals(t *testing.T) {
	c := classify.New(0.3)

	class, family, confidence := c.Classify(record(nil, nil))
	if class != model.ClassUnknown || family != model.OSUnknown || confidence != 0 {
		t.Errorf("Empty record: got %s/%s/%v, want unknown/unknown/0", class, family, confidence)
	}
}

func TestClassifyTieBreakPrecedence(t *testing.T) {
	c := classify.New(0.1)

	// Hostname layer only, matching both a server and a workstation
	// pattern with equal strength. Precedence puts server first.
	class, _, _ := c.Classify(record(nil, map[string]string{
		"hostname": "srv-desktop",
	}))
	if class != model.ClassServer {
		t.Errorf("Class = %s, want server by tie-break precedence", class)
	}
}

func TestClassifyLayerWeightCap(t *testing.T) {
	c := classify.New(0.1)

	// Several printer port rules cannot stack beyond the port layer
	// weight: one layer contributes at most weight * 1.0.
	_, _, confidence := c.Classify(record([]int{515, 631, 9100}, nil))
	if confidence > 0.40+1e-9 {
		t.Errorf("Confidence = %v, port layer alone must not exceed 0.40", confidence)
	}
}

func TestClassifyFallbackAttributesFeedSignals(t *testing.T) {
	c := classify.New(0.3)

	// Record whose attributes came from a winning attempt instead.
	rec := &model.DeviceRecord{
		Address: "10.0.0.1",
		Ports:   model.PortScanResult{OpenPorts: []int{161, 23}},
		Attempts: []model.CollectionAttempt{
			{
				Method: model.MethodSNMP,
				Status: model.StatusSuccess,
				Fields: map[string]string{"sys_descr": "JUNOS 21.2R3", "hostname": "rtr-edge"},
			},
		},
	}

	class, _, _ := c.Classify(rec)
	if class != model.ClassNetworkDevice {
		t.Errorf("Class = %s, want network_device from attempt fields", class)
	}
}

func TestClassifyCustomHostnamePatterns(t *testing.T) {
	c := classify.NewWithPatterns(0.1, []classify.HostnamePattern{
		{Substr: "kiosk", Class: model.ClassWorkstation},
	})

	class, _, _ := c.Classify(record(nil, map[string]string{"hostname": "kiosk-lobby"}))
	if class != model.ClassWorkstation {
		t.Errorf("Class = %s, want workstation from custom pattern", class)
	}

	// The default patterns are replaced, not extended.
	class, _, _ = c.Classify(record(nil, map[string]string{"hostname": "print-room"}))
	if class != model.ClassUnknown {
		t.Errorf("Class = %s, want unknown when default patterns are swapped out", class)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := classify.New(0.3)

	portPool := []int{22, 23, 80, 135, 161, 443, 445, 515, 631, 902, 3389, 5060, 9100}
	hostnames := []string{"", "srv-db-01", "ws-lab", "print-a4", "rtr-core", "esx-07", "unnamed"}
	families := []string{"", "windows", "linux", "network_os"}

	rapid.Check(t, func(rt *rapid.T) {
		ports := rapid.SliceOfNDistinct(rapid.SampledFrom(portPool), 0, 6, rapid.ID).Draw(rt, "ports")
		hostname := rapid.SampledFrom(hostnames).Draw(rt, "hostname")
		family := rapid.SampledFrom(families).Draw(rt, "family")

		attrs := map[string]string{"hostname": hostname, "os_family": family}
		rec1 := record(append([]int(nil), ports...), attrs)
		rec2 := record(append([]int(nil), ports...), attrs)

		// Scan results arrive sorted from the scanner.
		sortInts(rec1.Ports.OpenPorts)
		sortInts(rec2.Ports.OpenPorts)

		class1, family1, conf1 := c.Classify(rec1)
		class2, family2, conf2 := c.Classify(rec2)
		if class1 != class2 || family1 != family2 || conf1 != conf2 {
			rt.Fatalf("Classification is not deterministic: %s/%s/%v vs %s/%s/%v",
				class1, family1, conf1, class2, family2, conf2)
		}
		if conf1 < 0 || conf1 > 1 {
			rt.Fatalf("Confidence %v out of [0,1]", conf1)
		}
		if conf1 < 0.3 && class1 != model.ClassUnknown {
			rt.Fatalf("Below-threshold score %v must yield unknown, got %s", conf1, class1)
		}
	})
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
