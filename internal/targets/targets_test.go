package targets

import (
	"reflect"
	"testing"
)

func TestExpandSingleHosts(t *testing.T) {
	hosts, err := Expand([]string{"10.0.0.5", "host.example.com", "10.0.0.5"}, nil)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"10.0.0.5", "host.example.com"}
	if !reflect.DeepEqual(hosts, want) {
		t.Errorf("Expand = %v, want %v", hosts, want)
	}
}

func TestExpandCIDRSkipsNetworkAndBroadcast(t *testing.T) {
	hosts, err := Expand([]string{"192.168.1.0/30"}, nil)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"192.168.1.1", "192.168.1.2"}
	if !reflect.DeepEqual(hosts, want) {
		t.Errorf("Expand(/30) = %v, want %v", hosts, want)
	}
}

func TestExpandSlash31KeepsBothAddresses(t *testing.T) {
	hosts, err := Expand([]string{"10.0.0.0/31"}, nil)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(hosts) != 2 {
		t.Errorf("Expected 2 hosts for a /31 point-to-point link, got %v", hosts)
	}
}

func TestExpandCIDRCount(t *testing.T) {
	hosts, err := Expand([]string{"172.16.0.0/24"}, nil)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(hosts) != 254 {
		t.Errorf("Expected 254 usable hosts in a /24, got %d", len(hosts))
	}
}

func TestExpandExclusions(t *testing.T) {
	hosts, err := Expand(
		[]string{"192.168.1.0/30", "192.168.2.1"},
		[]string{"192.168.1.1", "192.168.2.0/24"})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"192.168.1.2"}
	if !reflect.DeepEqual(hosts, want) {
		t.Errorf("Expand with exclusions = %v, want %v", hosts, want)
	}
}

func TestExpandInvalidCIDR(t *testing.T) {
	if _, err := Expand([]string{"10.0.0.0/99"}, nil); err == nil {
		t.Error("Expected error for invalid CIDR")
	}
}

func TestExpandEmpty(t *testing.T) {
	if _, err := Expand(nil, nil); err == nil {
		t.Error("Expected error for empty target list")
	}
	if _, err := Expand([]string{"10.0.0.1"}, []string{"10.0.0.1"}); err == nil {
		t.Error("Expected error when every target is excluded")
	}
}

func TestParseSpecs(t *testing.T) {
	got := ParseSpecs(" 10.0.0.1, 10.0.0.0/24 ,,host ")
	want := []string{"10.0.0.1", "10.0.0.0/24", "host"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseSpecs = %v, want %v", got, want)
	}
	if specs := ParseSpecs(""); specs != nil {
		t.Errorf("ParseSpecs(\"\") = %v, want nil", specs)
	}
}
