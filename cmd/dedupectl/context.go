package main

import (
	"net/http"
	"strings"
	"time"
)

type commandContext struct {
	serverFlag *string
	tokenFlag  *string
	jsonFlag   *bool
}

func newCommandContext(serverFlag, tokenFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) client() *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(strings.TrimSpace(*c.serverFlag), "/"),
		token:   strings.TrimSpace(*c.tokenFlag),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}
