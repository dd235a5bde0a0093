package xui

import (
	"net"
	"strconv"
	"strings"

	"github.com/tphan267/xui-hub/pkg/models"
)

// Paths holds the panel API paths relative to the panel base URL.
// Inbound paths may contain "{id}".
type Paths struct {
	Login         string
	Status        string
	ListInbounds  string
	AddInbound    string
	UpdateInbound string
	DeleteInbound string
}

// DefaultPaths returns the 3x-ui panel API layout
func DefaultPaths() Paths {
	return Paths{
		Login:         "/login",
		Status:        "/server/status",
		ListInbounds:  "/panel/api/inbounds/list",
		AddInbound:    "/panel/api/inbounds/add",
		UpdateInbound: "/panel/api/inbounds/update/{id}",
		DeleteInbound: "/panel/api/inbounds/del/{id}",
	}
}

// withDefaults fills empty fields from DefaultPaths
func (p Paths) withDefaults() Paths {
	d := DefaultPaths()
	if p.Login == "" {
		p.Login = d.Login
	}
	if p.Status == "" {
		p.Status = d.Status
	}
	if p.ListInbounds == "" {
		p.ListInbounds = d.ListInbounds
	}
	if p.AddInbound == "" {
		p.AddInbound = d.AddInbound
	}
	if p.UpdateInbound == "" {
		p.UpdateInbound = d.UpdateInbound
	}
	if p.DeleteInbound == "" {
		p.DeleteInbound = d.DeleteInbound
	}
	return p
}

func withID(template, id string) string {
	return strings.ReplaceAll(template, "{id}", id)
}

// NormalizeBasePath returns "" or a path with a leading and no trailing slash
func NormalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// BaseURL returns scheme://host:port{basePath} for a server record
func BaseURL(server *models.Server) string {
	scheme := "http"
	if server.UseTLS {
		scheme = "https"
	}
	host := strings.Trim(server.Host, "[]")
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(server.Port)) + NormalizeBasePath(server.WebBasePath)
}

func endpointURL(server *models.Server, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return BaseURL(server) + path
}
