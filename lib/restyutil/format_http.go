package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{}
	for _, k := range keys {
		for _, v := range headers[k] {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(lines, "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil || req.Body == nil || req.Body == http.NoBody {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	if body == nil {
		return ""
	}
	defer body.Close()
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
const requestTemplate = `---- REQUEST ----

%s %s

%s

%s`

// 1: response status
// 2: response url
// 3: response headers in ("Key: Value" format)
// 4: response body
const responseTemplate = `

---- RESPONSE ----

%s %s

%s

%s`

// 1: error
const errorTemplate = `

---- ERROR ----

%s`

func formatRequest(req *resty.Request) string {
	var headers http.Header
	if req.RawRequest != nil {
		headers = req.RawRequest.Header
	} else {
		headers = req.Header
	}
	return fmt.Sprintf(
		requestTemplate,
		req.Method, req.URL,
		formatHeaders(headers),
		formatRequestBody(req.RawRequest),
	)
}

func formatExchange(res *resty.Response) string {
	responseUrl := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			responseUrl = redirected.String()
		}
	}

	return formatRequest(res.Request) + fmt.Sprintf(
		responseTemplate,
		strconv.Itoa(res.StatusCode()), responseUrl,
		formatHeaders(res.Header()),
		res.String(),
	)
}

func formatFailure(req *resty.Request, err error) string {
	return formatRequest(req) + fmt.Sprintf(errorTemplate, err.Error())
}
