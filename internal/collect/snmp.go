package collect

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/martinsuchenak/assetd/internal/model"
)

// Standard MIB-2 system OIDs walked by the SNMP collector.
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysUptime   = ".1.3.6.1.2.1.1.3.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
	oidSysLocation = ".1.3.6.1.2.1.1.6.0"
	oidIfNumber    = ".1.3.6.1.2.1.2.1.0"
)

// SNMPCollector queries the MIB-2 system group with a v2c community
// string. It is only scheduled when the resolved credentials carry a
// community, so a missing agent is the interesting failure to report:
// a request timeout against an otherwise alive host means no agent
// (unreachable), while an expired pipeline deadline means timeout.
type SNMPCollector struct {
	Port uint16 // Defaults to 161
}

// NewSNMPCollector creates an SNMP collector on the default port.
func NewSNMPCollector() *SNMPCollector {
	return &SNMPCollector{Port: 161}
}

func (c *SNMPCollector) Method() model.CollectionMethod {
	return model.MethodSNMP
}

func (c *SNMPCollector) Collect(ctx context.Context, req *Request) model.CollectionAttempt {
	attempt := begin(c.Method())

	community := ""
	if req.Credentials != nil {
		community = req.Credentials.SNMPCommunity
	}
	if community == "" {
		return finalize(attempt, model.StatusAuthFailed, nil,
			fmt.Errorf("snmp requires a community string"))
	}

	port := c.Port
	if port == 0 {
		port = 161
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    req.Address,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   perRequestTimeout(req.Timeout),
		Retries:   1,
		MaxOids:   gosnmp.MaxOids,
	}

	if err := client.Connect(); err != nil {
		return finalize(attempt, model.StatusUnreachable, nil, fmt.Errorf("snmp connect: %w", err))
	}
	defer client.Conn.Close()

	oids := []string{oidSysDescr, oidSysObjectID, oidSysUptime, oidSysName, oidSysLocation, oidIfNumber}
	result, err := client.Get(oids)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return finalize(attempt, model.StatusTimeout, nil, err)
		}
		// UDP gives no refusal: a request timeout against a host we
		// already proved alive means there is no agent listening.
		return finalize(attempt, model.StatusUnreachable, nil, err)
	}
	if result.Error != gosnmp.NoError {
		return finalize(attempt, model.StatusUnreachable, nil,
			fmt.Errorf("snmp agent error: %v", result.Error))
	}

	fields := c.parseVariables(result.Variables)
	if len(fields) == 0 {
		// Agent answered but exposes none of the system group. Success
		// with empty fields is forbidden by the attempt contract.
		return finalize(attempt, model.StatusUnreachable, nil,
			fmt.Errorf("snmp agent returned no usable system values"))
	}

	fields["address"] = req.Address
	if family := osFamilyFromSysDescr(fields["sys_descr"]); family != "" {
		fields["os_family"] = string(family)
	}
	setIfPresent(fields, "banner", fields["sys_descr"])
	return finalize(attempt, model.StatusSuccess, fields, nil)
}

func (c *SNMPCollector) parseVariables(variables []gosnmp.SnmpPDU) map[string]string {
	fields := make(map[string]string)
	for _, v := range variables {
		if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance {
			continue
		}
		switch v.Name {
		case oidSysDescr:
			setIfPresent(fields, "sys_descr", pduString(v))
		case oidSysObjectID:
			setIfPresent(fields, "sys_object_id", pduString(v))
		case oidSysUptime:
			if v.Type == gosnmp.TimeTicks {
				ticks := gosnmp.ToBigInt(v.Value).Int64()
				fields["uptime"] = (time.Duration(ticks*10) * time.Millisecond).Truncate(time.Second).String()
			}
		case oidSysName:
			setIfPresent(fields, "hostname", pduString(v))
		case oidSysLocation:
			setIfPresent(fields, "location", pduString(v))
		case oidIfNumber:
			if v.Type == gosnmp.Integer {
				fields["if_count"] = strconv.FormatInt(gosnmp.ToBigInt(v.Value).Int64(), 10)
			}
		}
	}
	return fields
}

func pduString(v gosnmp.SnmpPDU) string {
	switch v.Type {
	case gosnmp.OctetString:
		if b, ok := v.Value.([]byte); ok {
			return strings.TrimSpace(string(b))
		}
	case gosnmp.ObjectIdentifier:
		if s, ok := v.Value.(string); ok {
			return s
		}
	}
	return ""
}

// osFamilyFromSysDescr maps well known sysDescr phrasings to a family.
func osFamilyFromSysDescr(descr string) model.OSFamily {
	d := strings.ToLower(descr)
	switch {
	case d == "":
		return ""
	case strings.Contains(d, "cisco"), strings.Contains(d, "junos"),
		strings.Contains(d, "juniper"), strings.Contains(d, "routeros"),
		strings.Contains(d, "fortios"), strings.Contains(d, "procurve"):
		return model.OSNetworkOS
	case strings.Contains(d, "windows"):
		return model.OSWindows
	case strings.Contains(d, "linux"):
		return model.OSLinux
	}
	return ""
}

// perRequestTimeout leaves room for one retry inside the method deadline.
func perRequestTimeout(total time.Duration) time.Duration {
	t := total / 2
	if t < time.Second {
		t = time.Second
	}
	return t
}
