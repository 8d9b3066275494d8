package model

import "testing"

func TestCompletenessScore(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		want       float64
	}{
		{"nil map", nil, 0},
		{"empty map", map[string]string{}, 0},
		{
			"one schema field",
			map[string]string{"address": "10.0.0.1"},
			1.0 / float64(len(AttributeSchema)),
		},
		{
			"extra fields do not count",
			map[string]string{"address": "10.0.0.1", "http_status": "200", "custom": "x"},
			1.0 / float64(len(AttributeSchema)),
		},
		{
			"empty values do not count",
			map[string]string{"address": "10.0.0.1", "hostname": ""},
			1.0 / float64(len(AttributeSchema)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompletenessScore(tt.attributes); got != tt.want {
				t.Errorf("CompletenessScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompletenessScoreFull(t *testing.T) {
	attrs := make(map[string]string)
	for _, name := range AttributeSchema {
		attrs[name] = "x"
	}
	if got := CompletenessScore(attrs); got != 1.0 {
		t.Errorf("Full schema should score 1.0, got %v", got)
	}
}

func TestWinningAttempt(t *testing.T) {
	rec := &DeviceRecord{
		Attempts: []CollectionAttempt{
			{Method: MethodWinRM, Status: StatusAuthFailed},
			{Method: MethodSSH, Status: StatusSuccess, Fields: map[string]string{"hostname": "h"}},
			{Method: MethodHTTP, Status: StatusSuccess},
		},
	}

	win := rec.WinningAttempt()
	if win == nil {
		t.Fatal("Expected a winning attempt")
	}
	if win.Method != MethodSSH {
		t.Errorf("Winning attempt = %s, want ssh (first success)", win.Method)
	}
}

func TestWinningAttemptNone(t *testing.T) {
	rec := &DeviceRecord{}
	if win := rec.WinningAttempt(); win != nil {
		t.Errorf("Expected nil winning attempt for empty history, got %+v", win)
	}
}

func TestPortScanResultHelpers(t *testing.T) {
	scan := PortScanResult{
		OpenPorts: []int{22, 80, 445},
		Services: []ServiceInfo{
			{Port: 22, Service: "ssh"},
			{Port: 80, Service: "http"},
		},
	}

	if !scan.HasPort(22) || !scan.HasPort(445) {
		t.Error("HasPort should find open ports")
	}
	if scan.HasPort(443) {
		t.Error("HasPort should not find closed ports")
	}
	if !scan.HasAnyPort(443, 80) {
		t.Error("HasAnyPort should match when one port is open")
	}
	if scan.HasAnyPort(443, 8080) {
		t.Error("HasAnyPort should not match when no port is open")
	}
	if got := scan.ServiceFor(22); got != "ssh" {
		t.Errorf("ServiceFor(22) = %q, want ssh", got)
	}
	if got := scan.ServiceFor(445); got != "" {
		t.Errorf("ServiceFor(445) = %q, want empty", got)
	}
}

func TestHasEvidence(t *testing.T) {
	r := ReachabilityResult{Evidence: []EvidenceMethod{EvidenceICMP, EvidenceARP}}
	if !r.HasEvidence(EvidenceICMP) {
		t.Error("Expected ICMP evidence")
	}
	if r.HasEvidence(EvidenceTCP) {
		t.Error("Did not expect TCP evidence")
	}
}
