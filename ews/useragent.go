package ews

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	ProjectName = "ews-go"
	ProjectURL  = "https://github.com/icodeforyou/ews-go"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/icodeforyou/ews-go/ews.Version=1.2.3"
var Version = "0.0.0"

// BuildUserAgent returns "<name>/<version> (+<url>), Go-http-client/<go version>".
func BuildUserAgent(name, version string) string {
	return fmt.Sprintf("%s/%s (+%s), Go-http-client/%s",
		name, version, ProjectURL, strings.TrimPrefix(runtime.Version(), "go"))
}

func DefaultUserAgent() string {
	return BuildUserAgent(ProjectName, Version)
}
