package httpclient_test

import (
	"context"
	"time"

	hc "github.com/nostrkit/relayd/httpclient"
)

func Example_relayInfo() {
	info := struct {
		Name          string `json:"name"`
		SupportedNips []int  `json:"supported_nips"`
	}{}

	req := hc.NewRequest("GET", "/", time.Second)
	req.Headers = map[string]string{"Accept": "application/nostr+json"}
	req.Decoder = hc.NewJSONDecoder(&info)

	client := hc.New(
		hc.Config{
			Name:    "relay-info",
			BaseURL: "http://127.0.0.1:52484",
			Timeout: 5 * time.Second,
		})

	err := client.Call(context.Background(), req)
	if err != nil {
		// do something
	}
}
