package syncx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const contentType = "application/octet-stream"

// maxErrorBody bounds how much of an error response is quoted back.
const maxErrorBody = 512

// httpStore talks to one object over plain HTTP with provider-specific
// request signing.
type httpStore struct {
	client     *http.Client
	url        string
	metaHeader string
	sign       func(req *http.Request, body []byte)
}

func (s *httpStore) do(ctx context.Context, method string, body []byte, header http.Header) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.url, rd)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	s.sign(req, body)
	return s.client.Do(req)
}

func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrRemoteNotFound
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func (s *httpStore) put(ctx context.Context, data []byte, version int64) error {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set(s.metaHeader, strconv.FormatInt(version, 10))

	resp, err := s.do(ctx, http.MethodPut, data, h)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

func (s *httpStore) get(ctx context.Context) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (s *httpStore) head(ctx context.Context) (int64, error) {
	resp, err := s.do(ctx, http.MethodHead, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return 0, statusError(resp)
	}
	return versionFromHeader(resp.Header, s.metaHeader), nil
}

// versionFromHeader prefers the version metadata written on upload and falls
// back to Last-Modified for objects uploaded by other tools.
func versionFromHeader(h http.Header, metaHeader string) int64 {
	if v, err := strconv.ParseInt(h.Get(metaHeader), 10, 64); err == nil {
		return v
	}
	if t, err := http.ParseTime(h.Get("Last-Modified")); err == nil {
		return t.Unix()
	}
	return 0
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

// Aliyun OSS.

const aliyunMetaVersion = "x-oss-meta-version"

func aliyunURL(c *ObjectStorageConfig) string {
	if strings.HasPrefix(c.Endpoint, "http") {
		return fmt.Sprintf("%s/%s/%s", c.Endpoint, c.Bucket, escapePath(c.Path))
	}
	return fmt.Sprintf("https://%s.%s/%s", c.Bucket, c.Endpoint, escapePath(c.Path))
}

func newAliyunStore(c *ObjectStorageConfig, client *http.Client, now func() time.Time) *httpStore {
	return &httpStore{
		client:     client,
		url:        aliyunURL(c),
		metaHeader: aliyunMetaVersion,
		sign: func(req *http.Request, body []byte) {
			date := now().UTC().Format(http.TimeFormat)
			req.Header.Set("Date", date)
			if body != nil {
				sum := md5.Sum(body)
				req.Header.Set("Content-MD5", base64.StdEncoding.EncodeToString(sum[:]))
			}
			sig := AliyunSignature(c.AccessKeySecret, req.Method, req.Header, "/"+c.Bucket+"/"+c.Path)
			req.Header.Set("Authorization", "OSS "+c.AccessKeyID+":"+sig)
		},
	}
}

// AliyunSignature computes the OSS header signature:
//
//	base64(HMAC-SHA1(secret, VERB\nContent-MD5\nContent-Type\nDate\n<x-oss-* headers><resource>))
//
// where the x-oss-* headers are lower-cased, sorted and emitted as
// "name:value\n".
func AliyunSignature(secret, method string, h http.Header, resource string) string {
	var ossHeaders []string
	for k := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-oss-") {
			ossHeaders = append(ossHeaders, lk+":"+strings.TrimSpace(h.Get(k))+"\n")
		}
	}
	sort.Strings(ossHeaders)

	toSign := method + "\n" +
		h.Get("Content-MD5") + "\n" +
		h.Get("Content-Type") + "\n" +
		h.Get("Date") + "\n" +
		strings.Join(ossHeaders, "") +
		resource

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Tencent COS.

const (
	tencentMetaVersion   = "x-cos-meta-version"
	tencentDefaultRegion = "ap-beijing"
	tencentSignLifetime  = time.Hour
)

func tencentURL(c *ObjectStorageConfig) string {
	if strings.HasPrefix(c.Endpoint, "http") {
		return fmt.Sprintf("%s/%s", c.Endpoint, escapePath(c.Path))
	}
	region := c.Region
	if region == "" {
		region = tencentDefaultRegion
	}
	return fmt.Sprintf("https://%s.cos.%s.myqcloud.com/%s", c.Bucket, region, escapePath(c.Path))
}

func newTencentStore(c *ObjectStorageConfig, client *http.Client, now func() time.Time) *httpStore {
	return &httpStore{
		client:     client,
		url:        tencentURL(c),
		metaHeader: tencentMetaVersion,
		sign: func(req *http.Request, _ []byte) {
			start := now().Unix()
			req.Header.Set("Authorization", TencentAuthorization(c.AccessKeyID, c.AccessKeySecret, req.Method, "/"+c.Path, start, start+int64(tencentSignLifetime.Seconds())))
		},
	}
}

// TencentAuthorization builds a COS "q-sign-algorithm=sha1" Authorization
// value for a request without signed headers or URL parameters:
//
//	SignKey      = hex(HMAC-SHA1(secretKey, "start;end"))
//	HttpString   = lower(method)\npath\n\n\n
//	StringToSign = sha1\nstart;end\nhex(sha1(HttpString))\n
//	Signature    = hex(HMAC-SHA1(SignKey, StringToSign))
func TencentAuthorization(secretID, secretKey, method, path string, start, end int64) string {
	keyTime := fmt.Sprintf("%d;%d", start, end)

	signKey := hmacSHA1Hex([]byte(secretKey), keyTime)

	httpString := strings.ToLower(method) + "\n" + path + "\n\n\n"
	sum := sha1.Sum([]byte(httpString))
	stringToSign := "sha1\n" + keyTime + "\n" + hex.EncodeToString(sum[:]) + "\n"

	signature := hmacSHA1Hex([]byte(signKey), stringToSign)

	return "q-sign-algorithm=sha1&q-ak=" + secretID +
		"&q-sign-time=" + keyTime +
		"&q-key-time=" + keyTime +
		"&q-header-list=&q-url-param-list=" +
		"&q-signature=" + signature
}

func hmacSHA1Hex(key []byte, msg string) string {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
