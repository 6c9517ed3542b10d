package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/CZERTAINLY/netcheck/internal/bom"
	"github.com/CZERTAINLY/netcheck/internal/model"
)

// BOM writes the report as a CycloneDX document: every host is a device
// component which depends on a component per open port.
func BOM(w io.Writer, r model.Report) error {
	b := bom.NewBuilder().
		WithSerial(r.ID).
		WithTimestamp(r.Finished).
		AppendProperties(
			cdx.Property{Name: "netcheck:started", Value: r.Started.UTC().Format(time.RFC3339)},
			cdx.Property{Name: "netcheck:ports", Value: joinPorts(r.Ports, ",")},
			cdx.Property{Name: "netcheck:hosts", Value: strconv.Itoa(len(r.Hosts))},
			cdx.Property{Name: "netcheck:up", Value: strconv.Itoa(r.UpCount())},
		)

	for i, host := range r.Hosts {
		hostCompo, portCompos := hostToComponents(i, host)
		b.AppendComponents(hostCompo)
		b.AppendComponents(portCompos...)
		if len(portCompos) == 0 {
			continue
		}
		refs := make([]string, 0, len(portCompos))
		for _, c := range portCompos {
			refs = append(refs, c.BOMRef)
			b.AppendDependencies(cdx.Dependency{Ref: c.BOMRef})
		}
		b.AppendDependencies(cdx.Dependency{Ref: hostCompo.BOMRef, Dependencies: &refs})
	}

	if err := b.AsJSON(w); err != nil {
		return fmt.Errorf("formatting BOM as JSON: %w", err)
	}
	return nil
}

// hostToComponents uses the position in the report in refs, since the
// same host may be listed more than once.
func hostToComponents(i int, host model.HostResult) (cdx.Component, []cdx.Component) {
	ref := fmt.Sprintf("netcheck:host/%d/%s", i, host.Target.Host)
	hostCompo := cdx.Component{
		BOMRef: ref,
		Type:   cdx.ComponentTypeDevice,
		Name:   host.Target.Host,
		Properties: &[]cdx.Property{
			{Name: "netcheck:ping", Value: host.PingStatus()},
			{Name: "netcheck:status", Value: host.Status()},
			{Name: "netcheck:overridden", Value: strconv.FormatBool(host.Overridden)},
			{Name: "netcheck:closed_ports", Value: closedPorts(host)},
			{Name: "netcheck:elapsed", Value: host.Elapsed.String()},
		},
	}

	var portCompos []cdx.Component
	for _, port := range host.OpenPorts() {
		portCompos = append(portCompos, cdx.Component{
			BOMRef: fmt.Sprintf("netcheck:tcp/open/%d/%s:%d", i, host.Target.Host, port),
			Type:   cdx.ComponentTypeData,
			Name:   fmt.Sprintf("tcp/%d", port),
			Properties: &[]cdx.Property{
				{Name: "netcheck:port", Value: strconv.Itoa(int(port))},
				{Name: "netcheck:protocol", Value: "tcp"},
				{Name: "netcheck:state", Value: "open"},
			},
		})
	}
	return hostCompo, portCompos
}

func closedPorts(host model.HostResult) string {
	var closed []string
	for _, p := range host.Ports {
		if !p.Open {
			closed = append(closed, strconv.Itoa(int(p.Port)))
		}
	}
	return strings.Join(closed, ",")
}
