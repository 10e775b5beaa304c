// Package restyutil dumps raw HTTP exchanges made by a resty client, it is
// meant for debugging scrapers against pages that changed their markup.
package restyutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Output receives one formatted exchange per request.
type Output interface {
	Write(id string, contents string)
}

type dumper struct {
	prefix    string
	output    Output
	idcounter *uint64
}

type dumpIdKeyType int

var dumpIdKey dumpIdKeyType

// DumpExchanges writes the request and response (or transport error) of every
// request made by client to output, files are named `<prefix>-<n>.http`.
// A nil output makes this a no-op.
func DumpExchanges(client *resty.Client, prefix string, output Output) {
	if output == nil {
		return
	}

	var idcounter uint64
	d := dumper{prefix: prefix, output: output, idcounter: &idcounter}
	client.OnBeforeRequest(d.onBeforeRequest)
	client.OnAfterResponse(d.onAfterResponse)
	client.OnError(d.onError)
}

func (d dumper) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	id := fmt.Sprintf("%s-%d.http", d.prefix, atomic.AddUint64(d.idcounter, 1))
	req.SetContext(context.WithValue(req.Context(), dumpIdKey, id))
	return nil
}

func (d dumper) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	id, ok := res.Request.Context().Value(dumpIdKey).(string)
	if !ok {
		return nil
	}
	d.output.Write(id, formatExchange(res))
	return nil
}

func (d dumper) onError(req *resty.Request, err error) {
	id, ok := req.Context().Value(dumpIdKey).(string)
	if !ok {
		return
	}
	d.output.Write(id, formatFailure(req, err))
}
