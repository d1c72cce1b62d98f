package main

import "errors"

var (
	errNoRecord = errors.New("event carries no CloudFront record")
	errNoTable  = errors.New("no routing table configured; set EDGECRAFT_TABLE or link main.routerTable")
)

// Lambda@Edge event model for the origin-request trigger. Declared here
// because aws-lambda-go carries no CloudFront edge event types; field names
// mirror the event JSON.

type cfEvent struct {
	Records []cfRecord `json:"Records"`
}

type cfRecord struct {
	CF cfRecordBody `json:"cf"`
}

type cfRecordBody struct {
	Config  cfConfig   `json:"config"`
	Request *cfRequest `json:"request"`
}

type cfConfig struct {
	DistributionDomainName string `json:"distributionDomainName"`
	DistributionID         string `json:"distributionId"`
	EventType              string `json:"eventType"`
	RequestID              string `json:"requestId"`
}

type cfRequest struct {
	ClientIP    string                `json:"clientIp"`
	Method      string                `json:"method"`
	URI         string                `json:"uri"`
	QueryString string                `json:"querystring"`
	Headers     map[string][]cfHeader `json:"headers"`
	Origin      *cfOrigin             `json:"origin,omitempty"`
}

type cfHeader struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

type cfOrigin struct {
	Custom *cfCustomOrigin `json:"custom,omitempty"`
	S3     *cfS3Origin     `json:"s3,omitempty"`
}

type cfCustomOrigin struct {
	DomainName       string                `json:"domainName"`
	Port             int                   `json:"port"`
	Protocol         string                `json:"protocol"`
	Path             string                `json:"path"`
	SSLProtocols     []string              `json:"sslProtocols"`
	ReadTimeout      int                   `json:"readTimeout"`
	KeepaliveTimeout int                   `json:"keepaliveTimeout"`
	CustomHeaders    map[string][]cfHeader `json:"customHeaders"`
}

type cfS3Origin struct {
	DomainName    string                `json:"domainName"`
	AuthMethod    string                `json:"authMethod"`
	Path          string                `json:"path"`
	Region        string                `json:"region,omitempty"`
	CustomHeaders map[string][]cfHeader `json:"customHeaders"`
}
