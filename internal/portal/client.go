// Package portal drives the three-step check-in sequence against the
// k8n.cn student portal: fetch the class list, find the active check-in
// task, submit jittered coordinates. The scraping rules target that one
// site's markup and are expected to break when it changes.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/yclw/dus-checkin-bot/internal/domain"
)

var (
	ErrCredentialExpired = errors.New("portal session expired")
	ErrNoClass           = errors.New("no class found")
	ErrNoTask            = errors.New("no check-in task found")
)

// The portal only serves its student pages to the WeChat in-app browser,
// so every request carries this fixed identification set.
const (
	userAgent      = "Mozilla/5.0 (Linux; Android 9; AKT-AK47 Build/USER-AK47; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/116.0.0.0 Mobile Safari/537.36 XWEB/1160065 MMWEBSDK/20231202 MMWEBID/1136 MicroMessenger/8.0.47.2560(0x28002F35) WeChat/arm64 Weixin NetType/4G Language/zh_CN ABI/arm64"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/wxpic,image/tpg,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	acceptLanguage = "zh-CN,zh-SG;q=0.9,zh;q=0.8,en-SG;q=0.7,en-US;q=0.6,en;q=0.5"
	requestedWith  = "com.tencent.mm"

	submitAccuracy = "10"
)

// Class is one entry scraped from the portal home page.
type Class struct {
	ID   string
	Name string
}

// Client shares one underlying HTTP transport across all users; the
// credential travels only in per-request headers.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &Client{http: c, log: log}
}

// checkinHeaders is built fresh per attempt and never set on the shared
// client, so one user's credential cannot leak into another's request.
func checkinHeaders(credential string) map[string]string {
	return map[string]string{
		"User-Agent":       userAgent,
		"Accept":           acceptHeader,
		"Accept-Language":  acceptLanguage,
		"Cookie":           credential,
		"X-Requested-With": requestedWith,
	}
}

func checkStatus(res *resty.Response) error {
	switch res.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrCredentialExpired
	default:
		return fmt.Errorf("portal returned status %d", res.StatusCode())
	}
}

// ResolveClasses fetches the portal home page and returns every class
// found on it, in page order. The caller decides how to pick one: the
// interactive flow surfaces the whole list, the scheduler takes the first.
func (c *Client) ResolveClasses(ctx context.Context, credential string) ([]Class, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(checkinHeaders(credential)).
		Get("/student")
	if err != nil {
		return nil, fmt.Errorf("fetch class list: %w", err)
	}
	if err := checkStatus(res); err != nil {
		return nil, err
	}

	classes := extractClasses(res.String())
	if len(classes) == 0 {
		return nil, ErrNoClass
	}
	return classes, nil
}

// ResolveTask finds the id of the active check-in task for a class. The
// id may live in the URL the listing page redirects to, or in the page
// body; see extractTaskID for the strategy order.
func (c *Client) ResolveTask(ctx context.Context, credential, classID string) (string, error) {
	headers := checkinHeaders(credential)
	headers["Referer"] = c.http.BaseURL + "/student/course/" + classID

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get("/student/course/" + classID + "/punchs")
	if err != nil {
		return "", fmt.Errorf("fetch check-in tasks: %w", err)
	}
	if err := checkStatus(res); err != nil {
		return "", err
	}

	var finalPath string
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalPath = res.RawResponse.Request.URL.Path
	}
	taskID, strategy := extractTaskID(classID, finalPath, res.String())
	if taskID == "" {
		return "", ErrNoTask
	}
	c.log.Debug("check-in task resolved",
		zap.String("class", classID),
		zap.String("task", taskID),
		zap.String("strategy", strategy))
	return taskID, nil
}

// Submit jitters the coordinates (one independent draw each) and posts
// the check-in form, classifying the free-text response body.
func (c *Client) Submit(ctx context.Context, cfg domain.UserConfig, classID, taskID string) domain.CheckinResult {
	headers := checkinHeaders(cfg.Cookie)
	headers["Origin"] = c.http.BaseURL
	headers["Referer"] = c.http.BaseURL + "/student/course/" + classID + "/punchs"

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetFormData(map[string]string{
			"id":       taskID,
			"lat":      domain.Jitter(cfg.Lat, cfg.JitterRadius),
			"lng":      domain.Jitter(cfg.Lng, cfg.JitterRadius),
			"acc":      submitAccuracy,
			"res":      "",
			"gps_addr": "",
		}).
		Post("/student/punchs/course/" + classID + "/" + taskID)
	if err != nil {
		return domain.CheckinResult{Success: false, Message: "check-in request failed: " + err.Error()}
	}
	return Classify(res.String())
}

// PerformCheckin runs the full sequence for one user. When the class id
// was missing and had to be discovered, the discovered id is returned so
// the caller can cache it. All failures, transport errors included, fold
// into the result; this method never returns an error.
func (c *Client) PerformCheckin(ctx context.Context, cfg domain.UserConfig) (domain.CheckinResult, string) {
	classID := cfg.ClassID
	var resolved string
	if classID == "" {
		classes, err := c.ResolveClasses(ctx, cfg.Cookie)
		if err != nil {
			return failure(err), ""
		}
		// Unattended flow: take the first class on the page.
		classID = classes[0].ID
		resolved = classID
	}

	taskID, err := c.ResolveTask(ctx, cfg.Cookie, classID)
	if err != nil {
		return failure(err), resolved
	}

	return c.Submit(ctx, cfg, classID, taskID), resolved
}

// failure maps resolution errors to user-facing result messages. The
// credential-expired case stays distinct so the user knows to refresh the
// cookie instead of retrying blindly.
func failure(err error) domain.CheckinResult {
	var msg string
	switch {
	case errors.Is(err, ErrCredentialExpired):
		msg = "Portal session expired, refresh it with: set cookie <value>"
	case errors.Is(err, ErrNoClass):
		msg = "No class found on the portal home page"
	case errors.Is(err, ErrNoTask):
		msg = "No active check-in task for your class"
	default:
		msg = "Check-in failed: " + err.Error()
	}
	return domain.CheckinResult{Success: false, Message: msg}
}
