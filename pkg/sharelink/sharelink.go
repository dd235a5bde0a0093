// Package sharelink builds client share links (vmess://, vless://, trojan://, ss://)
// from panel inbounds. Builders are pure functions of their inputs.
package sharelink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/tphan267/xui-hub/pkg/xui"
)

// Protocol is an inbound protocol name as reported by the panel
type Protocol string

const (
	VMess       Protocol = "vmess"
	VLESS       Protocol = "vless"
	Trojan      Protocol = "trojan"
	Shadowsocks Protocol = "shadowsocks"
)

// Config is one client's connection parameters. The concrete type is one of
// VMessConfig, VLESSConfig, TrojanConfig or ShadowsocksConfig.
type Config interface {
	Protocol() Protocol
	URI() string
}

// Endpoint is where clients connect
type Endpoint struct {
	Address string
	Port    int
	Remark  string
}

func (e Endpoint) hostPort() string {
	return net.JoinHostPort(strings.Trim(e.Address, "[]"), strconv.Itoa(e.Port))
}

// VMessConfig is a vmess client
type VMessConfig struct {
	Endpoint
	Stream
	ID      string
	AlterID int
	Cipher  string
}

func (VMessConfig) Protocol() Protocol { return VMess }

// URI renders the v2 JSON share format
func (c VMessConfig) URI() string {
	tls := ""
	if c.Security == "tls" {
		tls = "tls"
	}
	headerType := c.HeaderType
	if headerType == "" {
		headerType = "none"
	}
	cipher := c.Cipher
	if cipher == "" {
		cipher = "auto"
	}
	path := c.Path
	if c.Network == "grpc" {
		path = c.ServiceName
	}

	doc := struct {
		V    string `json:"v"`
		PS   string `json:"ps"`
		Add  string `json:"add"`
		Port int    `json:"port"`
		ID   string `json:"id"`
		Aid  int    `json:"aid"`
		Scy  string `json:"scy"`
		Net  string `json:"net"`
		Type string `json:"type"`
		Host string `json:"host"`
		Path string `json:"path"`
		TLS  string `json:"tls"`
		SNI  string `json:"sni,omitempty"`
		FP   string `json:"fp,omitempty"`
		ALPN string `json:"alpn,omitempty"`
	}{
		V: "2", PS: c.Remark, Add: c.Address, Port: c.Port, ID: c.ID, Aid: c.AlterID,
		Scy: cipher, Net: c.Network, Type: headerType, Host: c.Host, Path: path, TLS: tls,
		SNI: c.SNI, FP: c.Fingerprint, ALPN: c.ALPN,
	}

	data, _ := json.Marshal(doc)
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

// VLESSConfig is a vless client
type VLESSConfig struct {
	Endpoint
	Stream
	ID   string
	Flow string
}

func (VLESSConfig) Protocol() Protocol { return VLESS }

func (c VLESSConfig) URI() string {
	q := streamQuery(c.Stream)
	q.Set("encryption", "none")
	if c.Flow != "" && c.Network == "tcp" && c.Security != "none" {
		q.Set("flow", c.Flow)
	}
	return buildURI("vless", url.User(c.ID), c.Endpoint, q)
}

// TrojanConfig is a trojan client
type TrojanConfig struct {
	Endpoint
	Stream
	Password string
	Flow     string
}

func (TrojanConfig) Protocol() Protocol { return Trojan }

func (c TrojanConfig) URI() string {
	q := streamQuery(c.Stream)
	if c.Flow != "" && c.Network == "tcp" && c.Security == "reality" {
		q.Set("flow", c.Flow)
	}
	return buildURI("trojan", url.User(c.Password), c.Endpoint, q)
}

// ShadowsocksConfig is a shadowsocks client
type ShadowsocksConfig struct {
	Endpoint
	Stream
	Method   string
	Password string
}

func (ShadowsocksConfig) Protocol() Protocol { return Shadowsocks }

// URI renders the SIP002 form with a base64url user info
func (c ShadowsocksConfig) URI() string {
	userInfo := base64.RawURLEncoding.EncodeToString([]byte(c.Method + ":" + c.Password))
	u := "ss://" + userInfo + "@" + c.hostPort()
	if c.Network != "" && c.Network != "tcp" {
		q := streamQuery(c.Stream)
		u += "?" + q.Encode()
	}
	if c.Remark != "" {
		u += "#" + url.PathEscape(c.Remark)
	}
	return u
}

func buildURI(scheme string, user *url.Userinfo, e Endpoint, q url.Values) string {
	u := url.URL{
		Scheme:   scheme,
		User:     user,
		Host:     e.hostPort(),
		RawQuery: q.Encode(),
		Fragment: e.Remark,
	}
	return u.String()
}

// streamQuery renders the shared query parameters of vless/trojan links
func streamQuery(s Stream) url.Values {
	q := url.Values{}
	q.Set("type", s.Network)
	q.Set("security", s.Security)

	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("path", s.Path)
	set("host", s.Host)
	set("headerType", s.HeaderType)
	set("serviceName", s.ServiceName)
	set("seed", s.Seed)
	set("sni", s.SNI)
	set("fp", s.Fingerprint)
	set("alpn", s.ALPN)
	set("pbk", s.PublicKey)
	set("sid", s.ShortID)
	set("spx", s.SpiderX)
	return q
}

type inboundSettings struct {
	Clients []struct {
		ID       string `json:"id"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Flow     string `json:"flow"`
		Method   string `json:"method"`
		Security string `json:"security"`
		AlterID  int    `json:"alterId"`
		Enable   *bool  `json:"enable"`
	} `json:"clients"`
	Method   string `json:"method"`
	Password string `json:"password"`
}

// Parse converts an inbound into one Config per enabled client. Protocols
// without a share format yield no configs and no error.
func Parse(address string, in xui.Inbound) ([]Config, error) {
	proto := Protocol(strings.ToLower(in.Protocol))
	switch proto {
	case VMess, VLESS, Trojan, Shadowsocks:
	default:
		return nil, nil
	}

	var settings inboundSettings
	if err := in.Settings.Decode(&settings); err != nil {
		return nil, fmt.Errorf("inbound %d: invalid settings: %w", in.ID, err)
	}
	stream, err := parseStream(in.StreamSettings)
	if err != nil {
		return nil, fmt.Errorf("inbound %d: invalid stream settings: %w", in.ID, err)
	}

	endpoint := Endpoint{Address: address, Port: in.Port, Remark: in.Remark}

	if proto == Shadowsocks && len(settings.Clients) == 0 && settings.Password != "" {
		return []Config{ShadowsocksConfig{
			Endpoint: endpoint, Stream: stream,
			Method: settings.Method, Password: settings.Password,
		}}, nil
	}

	configs := make([]Config, 0, len(settings.Clients))
	for _, client := range settings.Clients {
		if client.Enable != nil && !*client.Enable {
			continue
		}

		ep := endpoint
		if len(settings.Clients) > 1 && client.Email != "" {
			ep.Remark = in.Remark + "-" + client.Email
		}

		switch proto {
		case VMess:
			configs = append(configs, VMessConfig{Endpoint: ep, Stream: stream, ID: client.ID, AlterID: client.AlterID, Cipher: client.Security})
		case VLESS:
			configs = append(configs, VLESSConfig{Endpoint: ep, Stream: stream, ID: client.ID, Flow: client.Flow})
		case Trojan:
			configs = append(configs, TrojanConfig{Endpoint: ep, Stream: stream, Password: client.Password, Flow: client.Flow})
		case Shadowsocks:
			method := client.Method
			if method == "" {
				method = settings.Method
			}
			password := client.Password
			// 2022 ciphers with per-user keys need the server key too
			if strings.HasPrefix(method, "2022-") && settings.Password != "" {
				password = settings.Password + ":" + client.Password
			}
			configs = append(configs, ShadowsocksConfig{Endpoint: ep, Stream: stream, Method: method, Password: password})
		}
	}
	return configs, nil
}

// InboundLinks are the share links of one inbound
type InboundLinks struct {
	InboundID int      `json:"inboundId"`
	Remark    string   `json:"remark"`
	Protocol  string   `json:"protocol"`
	Links     []string `json:"links"`
	Error     string   `json:"error,omitempty"`
}

// Build renders links for every inbound. A malformed inbound is reported in
// its own entry and does not affect the others.
func Build(address string, inbounds []xui.Inbound) []InboundLinks {
	out := make([]InboundLinks, 0, len(inbounds))
	for _, in := range inbounds {
		entry := InboundLinks{
			InboundID: in.ID,
			Remark:    in.Remark,
			Protocol:  in.Protocol,
			Links:     []string{},
		}

		configs, err := Parse(address, in)
		if err != nil {
			entry.Error = err.Error()
		}
		for _, cfg := range configs {
			entry.Links = append(entry.Links, cfg.URI())
		}
		out = append(out, entry)
	}
	return out
}
