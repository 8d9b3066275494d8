package model

import "time"

// DeviceClass is the categorical label assigned by the classifier.
type DeviceClass string

const (
	ClassServer        DeviceClass = "server"
	ClassWorkstation   DeviceClass = "workstation"
	ClassNetworkDevice DeviceClass = "network_device"
	ClassPrinter       DeviceClass = "printer"
	ClassIPPhone       DeviceClass = "ip_phone"
	ClassHypervisor    DeviceClass = "hypervisor"
	ClassUnknown       DeviceClass = "unknown"
)

// OSFamily is the coarse operating system family.
type OSFamily string

const (
	OSWindows   OSFamily = "windows"
	OSLinux     OSFamily = "linux"
	OSNetworkOS OSFamily = "network_os"
	OSUnknown   OSFamily = "unknown"
)

// AttributeSchema is the fixed set of attribute names the completeness
// score is computed against. Collectors may emit additional fields; those
// are kept but do not raise the score.
var AttributeSchema = []string{
	"address",
	"hostname",
	"os_name",
	"os_version",
	"manufacturer",
	"hw_model",
	"serial_number",
	"cpu_count",
	"memory_mb",
	"uptime",
	"mac_address",
	"open_ports",
	"services",
	"banner",
}

// DeviceRecord is the terminal artifact of one device pipeline. It owns
// its attempt history; nothing in it is shared across pipelines.
type DeviceRecord struct {
	ID               string              `json:"id"`
	Address          string              `json:"address"`
	Hostname         string              `json:"hostname,omitempty"`
	OSFamily         OSFamily            `json:"os_family"`
	DeviceClass      DeviceClass         `json:"device_class"`
	Confidence       float64             `json:"confidence"`
	Attributes       map[string]string   `json:"attributes,omitempty"`
	Completeness     float64             `json:"completeness"`
	CollectionMethod CollectionMethod    `json:"collection_method,omitempty"`
	Attempts         []CollectionAttempt `json:"attempts,omitempty"`
	Reachability     ReachabilityResult  `json:"reachability"`
	Ports            PortScanResult      `json:"ports"`
	ClassifiedAt     time.Time           `json:"classified_at"`
}

// CompletenessScore returns the fraction of the fixed attribute schema that has
// a non-empty value in the given attribute map.
func CompletenessScore(attributes map[string]string) float64 {
	if len(attributes) == 0 {
		return 0
	}
	populated := 0
	for _, name := range AttributeSchema {
		if attributes[name] != "" {
			populated++
		}
	}
	return float64(populated) / float64(len(AttributeSchema))
}

// WinningAttempt returns the attempt that produced Attributes, or nil for
// unreachable devices that never entered collection.
func (d *DeviceRecord) WinningAttempt() *CollectionAttempt {
	for i := range d.Attempts {
		if d.Attempts[i].Succeeded() {
			return &d.Attempts[i]
		}
	}
	return nil
}
