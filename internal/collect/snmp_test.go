package collect

import (
	"context"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/martinsuchenak/assetd/internal/model"
)

func TestSNMPRequiresCommunity(t *testing.T) {
	c := NewSNMPCollector()

	req := &Request{Address: "10.0.0.1", Timeout: time.Second}
	attempt := c.Collect(context.Background(), req)
	if attempt.Status != model.StatusAuthFailed {
		t.Errorf("Status = %s, want auth_failed without a community string", attempt.Status)
	}

	req.Credentials = &model.Credentials{Username: "admin", Password: "x"}
	attempt = c.Collect(context.Background(), req)
	if attempt.Status != model.StatusAuthFailed {
		t.Errorf("Status = %s, login credentials alone must not enable SNMP", attempt.Status)
	}
}

func TestSNMPParseVariables(t *testing.T) {
	c := NewSNMPCollector()

	variables := []gosnmp.SnmpPDU{
		{Name: oidSysDescr, Type: gosnmp.OctetString, Value: []byte("Cisco IOS Software, C2960X ")},
		{Name: oidSysObjectID, Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.9.1.1208"},
		{Name: oidSysUptime, Type: gosnmp.TimeTicks, Value: uint32(360000)}, // 1h in ticks
		{Name: oidSysName, Type: gosnmp.OctetString, Value: []byte("sw-core-01")},
		{Name: oidSysLocation, Type: gosnmp.OctetString, Value: []byte("rack 12")},
		{Name: oidIfNumber, Type: gosnmp.Integer, Value: 52},
	}

	fields := c.parseVariables(variables)
	if fields["sys_descr"] != "Cisco IOS Software, C2960X" {
		t.Errorf("sys_descr = %q", fields["sys_descr"])
	}
	if fields["sys_object_id"] != ".1.3.6.1.4.1.9.1.1208" {
		t.Errorf("sys_object_id = %q", fields["sys_object_id"])
	}
	if fields["uptime"] != "1h0m0s" {
		t.Errorf("uptime = %q, want 1h0m0s", fields["uptime"])
	}
	if fields["hostname"] != "sw-core-01" {
		t.Errorf("hostname = %q", fields["hostname"])
	}
	if fields["if_count"] != "52" {
		t.Errorf("if_count = %q", fields["if_count"])
	}
}

func TestSNMPParseVariablesSkipsMissingObjects(t *testing.T) {
	c := NewSNMPCollector()

	variables := []gosnmp.SnmpPDU{
		{Name: oidSysDescr, Type: gosnmp.NoSuchObject},
		{Name: oidSysName, Type: gosnmp.NoSuchInstance},
	}

	if fields := c.parseVariables(variables); len(fields) != 0 {
		t.Errorf("Expected no fields from missing objects, got %v", fields)
	}
}

func TestOSFamilyFromSysDescr(t *testing.T) {
	tests := []struct {
		descr string
		want  model.OSFamily
	}{
		{"Cisco IOS Software", model.OSNetworkOS},
		{"Juniper Networks, Inc. ex4300", model.OSNetworkOS},
		{"RouterOS RB750", model.OSNetworkOS},
		{"Hardware: Intel64 - Software: Windows Version 10.0", model.OSWindows},
		{"Linux sw-mgmt 5.15.0 #1 SMP x86_64", model.OSLinux},
		{"Some NAS appliance", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := osFamilyFromSysDescr(tt.descr); got != tt.want {
			t.Errorf("osFamilyFromSysDescr(%q) = %q, want %q", tt.descr, got, tt.want)
		}
	}
}

func TestPerRequestTimeout(t *testing.T) {
	if got := perRequestTimeout(10 * time.Second); got != 5*time.Second {
		t.Errorf("perRequestTimeout(10s) = %v, want 5s", got)
	}
	if got := perRequestTimeout(500 * time.Millisecond); got != time.Second {
		t.Errorf("perRequestTimeout(500ms) = %v, want the 1s floor", got)
	}
}
