package collect

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/martinsuchenak/assetd/internal/model"
)

// webPorts in preference order. HTTPS first: its Server header tends to be
// the more truthful one on appliances.
var webPorts = []int{443, 80, 8080}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>\s*(.*?)\s*</title>`)

const maxBodyBytes = 64 * 1024

// HTTPCollector issues a lightweight request to fingerprint a web service
// by its Server header and page title. It is used for device
// identification only, never deep collection.
type HTTPCollector struct {
	Ports []int // preference order, defaults to webPorts
}

// NewHTTPCollector creates an HTTP fingerprint collector.
func NewHTTPCollector() *HTTPCollector {
	return &HTTPCollector{}
}

func (c *HTTPCollector) Method() model.CollectionMethod {
	return model.MethodHTTP
}

func (c *HTTPCollector) Collect(ctx context.Context, req *Request) model.CollectionAttempt {
	attempt := begin(c.Method())

	port, scheme := c.pickPort(&req.Scan)

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	client := &http.Client{
		Timeout: req.Timeout,
		Transport: &http.Transport{
			DialContext:     (&net.Dialer{Timeout: req.Timeout}).DialContext,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // fingerprinting, not trust
		},
	}
	defer client.CloseIdleConnections()

	url := fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(req.Address, strconv.Itoa(port)))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return finalize(attempt, model.StatusUnsupported, nil, err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return finalize(attempt, model.StatusTimeout, nil, err)
		}
		return finalize(attempt, model.StatusUnsupported, nil, err)
	}
	defer resp.Body.Close()

	// Only 2xx/3xx responses identify a usable web service.
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return finalize(attempt, model.StatusUnsupported, nil,
			fmt.Errorf("http status %d", resp.StatusCode))
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	fields := map[string]string{
		"address":     req.Address,
		"http_port":   strconv.Itoa(port),
		"http_status": strconv.Itoa(resp.StatusCode),
	}
	setIfPresent(fields, "http_server", resp.Header.Get("Server"))
	if m := titleRe.FindSubmatch(body); m != nil {
		setIfPresent(fields, "http_title", collapseSpace(string(m[1])))
	}

	banner := fields["http_server"]
	if banner == "" {
		banner = fields["http_title"]
	}
	setIfPresent(fields, "banner", banner)

	return finalize(attempt, model.StatusSuccess, fields, nil)
}

// pickPort chooses the first open web port, defaulting to plain HTTP when
// the scan saw none (the orchestrator may still schedule HTTP last as a
// long shot).
func (c *HTTPCollector) pickPort(scan *model.PortScanResult) (int, string) {
	ports := c.Ports
	if len(ports) == 0 {
		ports = webPorts
	}
	for _, p := range ports {
		if scan.HasPort(p) {
			return p, schemeFor(p)
		}
	}
	return 80, "http"
}

func schemeFor(port int) string {
	if port == 443 {
		return "https"
	}
	return "http"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
