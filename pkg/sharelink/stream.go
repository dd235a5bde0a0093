package sharelink

import (
	"strings"

	"github.com/tphan267/xui-hub/pkg/xui"
)

// Stream is the transport and security part of an inbound, flattened
type Stream struct {
	Network     string
	Security    string
	SNI         string
	Fingerprint string
	ALPN        string
	PublicKey   string
	ShortID     string
	SpiderX     string
	Path        string
	Host        string
	ServiceName string
	HeaderType  string
	Seed        string
}

type streamSettings struct {
	Network     string `json:"network"`
	Security    string `json:"security"`
	TLSSettings struct {
		ServerName string   `json:"serverName"`
		ALPN       []string `json:"alpn"`
		Settings   struct {
			Fingerprint string `json:"fingerprint"`
		} `json:"settings"`
	} `json:"tlsSettings"`
	RealitySettings struct {
		ServerNames []string `json:"serverNames"`
		ShortIDs    []string `json:"shortIds"`
		Settings    struct {
			PublicKey   string `json:"publicKey"`
			Fingerprint string `json:"fingerprint"`
			SpiderX     string `json:"spiderX"`
		} `json:"settings"`
	} `json:"realitySettings"`
	TCPSettings struct {
		Header struct {
			Type    string `json:"type"`
			Request struct {
				Path    []string            `json:"path"`
				Headers map[string][]string `json:"headers"`
			} `json:"request"`
		} `json:"header"`
	} `json:"tcpSettings"`
	KCPSettings struct {
		Header struct {
			Type string `json:"type"`
		} `json:"header"`
		Seed string `json:"seed"`
	} `json:"kcpSettings"`
	WSSettings          pathHost `json:"wsSettings"`
	HTTPUpgradeSettings pathHost `json:"httpupgradeSettings"`
	XHTTPSettings       pathHost `json:"xhttpSettings"`
	SplitHTTPSettings   pathHost `json:"splithttpSettings"`
	HTTPSettings        struct {
		Path string   `json:"path"`
		Host []string `json:"host"`
	} `json:"httpSettings"`
	GRPCSettings struct {
		ServiceName string `json:"serviceName"`
	} `json:"grpcSettings"`
}

type pathHost struct {
	Path    string            `json:"path"`
	Host    string            `json:"host"`
	Headers map[string]string `json:"headers"`
}

func (p pathHost) host() string {
	if p.Host != "" {
		return p.Host
	}
	for k, v := range p.Headers {
		if strings.EqualFold(k, "host") {
			return v
		}
	}
	return ""
}

// parseStream flattens streamSettings. Missing settings mean plain tcp.
func parseStream(raw xui.JSONString) (Stream, error) {
	var ss streamSettings
	if err := raw.Decode(&ss); err != nil {
		return Stream{}, err
	}

	s := Stream{
		Network:  strings.ToLower(ss.Network),
		Security: strings.ToLower(ss.Security),
	}
	if s.Network == "" {
		s.Network = "tcp"
	}
	if s.Security == "" {
		s.Security = "none"
	}

	switch s.Network {
	case "tcp":
		if ss.TCPSettings.Header.Type == "http" {
			s.HeaderType = "http"
			if len(ss.TCPSettings.Header.Request.Path) > 0 {
				s.Path = ss.TCPSettings.Header.Request.Path[0]
			}
			for k, v := range ss.TCPSettings.Header.Request.Headers {
				if strings.EqualFold(k, "host") && len(v) > 0 {
					s.Host = v[0]
				}
			}
		}
	case "kcp", "mkcp":
		s.HeaderType = ss.KCPSettings.Header.Type
		s.Seed = ss.KCPSettings.Seed
	case "ws":
		s.Path, s.Host = ss.WSSettings.Path, ss.WSSettings.host()
	case "httpupgrade":
		s.Path, s.Host = ss.HTTPUpgradeSettings.Path, ss.HTTPUpgradeSettings.host()
	case "xhttp":
		s.Path, s.Host = ss.XHTTPSettings.Path, ss.XHTTPSettings.host()
	case "splithttp":
		s.Path, s.Host = ss.SplitHTTPSettings.Path, ss.SplitHTTPSettings.host()
	case "http", "h2":
		s.Path = ss.HTTPSettings.Path
		if len(ss.HTTPSettings.Host) > 0 {
			s.Host = ss.HTTPSettings.Host[0]
		}
	case "grpc":
		s.ServiceName = ss.GRPCSettings.ServiceName
	}

	switch s.Security {
	case "tls":
		s.SNI = ss.TLSSettings.ServerName
		s.Fingerprint = ss.TLSSettings.Settings.Fingerprint
		s.ALPN = strings.Join(ss.TLSSettings.ALPN, ",")
	case "reality":
		if len(ss.RealitySettings.ServerNames) > 0 {
			s.SNI = ss.RealitySettings.ServerNames[0]
		}
		if len(ss.RealitySettings.ShortIDs) > 0 {
			s.ShortID = ss.RealitySettings.ShortIDs[0]
		}
		s.PublicKey = ss.RealitySettings.Settings.PublicKey
		s.Fingerprint = ss.RealitySettings.Settings.Fingerprint
		s.SpiderX = ss.RealitySettings.Settings.SpiderX
	}

	return s, nil
}
