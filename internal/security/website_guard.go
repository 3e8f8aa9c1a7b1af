package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// WebsiteValidator は語学学校のウェブサイトURLを検証するインターフェース。
type WebsiteValidator interface {
	// Normalize はURLを検証し、スキームを補ったうえで正規化した文字列を返す。
	Normalize(rawURL string) (string, error)
	// Check はURLへリクエストを送り、到達可能かを確認する。
	Check(ctx context.Context, website string) error
}

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は内部ネットワークとみなすアドレス範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// WebsiteGuard はWebsiteValidatorの実装。
// 疎通確認にはsafeurlのクライアントを使い、DNS解決後のIPアドレスも検証する。
type WebsiteGuard struct {
	client *http.Client
}

// NewWebsiteGuard はWebsiteGuardを生成する。
func NewWebsiteGuard(timeout time.Duration) *WebsiteGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	return &WebsiteGuard{client: safeurl.Client(config).Client}
}

// Normalize はURLを静的に検証し、正規化した文字列を返す。
// スキームがない場合はhttps://を補う。DNS解決は行わない。
func (g *WebsiteGuard) Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return "", fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}
	parsed.Scheme = scheme

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return "", fmt.Errorf("blocked IP address: %s", ip.String())
		}
	} else if strings.EqualFold(host, "localhost") || !strings.Contains(host, ".") {
		return "", fmt.Errorf("blocked host: %s", host)
	}
	if parsed.User != nil {
		return "", fmt.Errorf("credentials are not allowed in URL")
	}

	return parsed.String(), nil
}

// Check はURLへHEADリクエストを送り、4xx/5xx以外の応答があれば成功とする。
// HEADを受け付けないサーバー（403/405/501）にはGETで再確認する。
func (g *WebsiteGuard) Check(ctx context.Context, website string) error {
	status, err := g.probe(ctx, http.MethodHead, website)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		status, err = g.probe(ctx, http.MethodGet, website)
		if err != nil {
			return err
		}
	}

	if status >= http.StatusBadRequest {
		return fmt.Errorf("website returned status %d", status)
	}
	return nil
}

// probe は指定メソッドでリクエストを送り、ステータスコードを返す。本文は読まない。
func (g *WebsiteGuard) probe(ctx context.Context, method, website string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, website, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "hagwonmatch-website-check/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("website unreachable: %w", err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ WebsiteValidator = (*WebsiteGuard)(nil)
