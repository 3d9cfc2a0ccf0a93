// Package cbr fetches the Central Bank of Russia key rate over its SOAP
// endpoint. Exposed at /key-rate as a utility for clients displaying rates
// next to balances.
package cbr

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

type Client struct {
	url    string
	client *http.Client
	log    *logrus.Logger
}

func NewClient(url string, log *logrus.Logger) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

const keyRateEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
	<soap12:Body>
		<KeyRate xmlns="http://web.cbr.ru/">
			<fromDate>%s</fromDate>
			<ToDate>%s</ToDate>
		</KeyRate>
	</soap12:Body>
</soap12:Envelope>`

func (c *Client) fetch() ([]byte, error) {
	from := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	to := time.Now().Format("2006-01-02")
	envelope := fmt.Sprintf(keyRateEnvelope, from, to)

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewBufferString(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetKeyRate returns the most recent key rate published by the CBR.
func (c *Client) GetKeyRate() (float64, error) {
	body, err := c.fetch()
	if err != nil {
		return 0, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return 0, fmt.Errorf("failed to parse XML: %w", err)
	}

	entries := doc.FindElements("//diffgram/KeyRate/KR")
	if len(entries) == 0 {
		return 0, fmt.Errorf("no key rate data found in response")
	}
	rateElement := entries[0].FindElement("./Rate")
	if rateElement == nil {
		return 0, fmt.Errorf("rate element not found in response")
	}

	rate, err := strconv.ParseFloat(rateElement.Text(), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse rate %q: %w", rateElement.Text(), err)
	}

	c.log.Debugf("CBR key rate: %.2f%%", rate)
	return rate, nil
}
