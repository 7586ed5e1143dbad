package xcfrontdoor

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/acerestreamer/gateway/internal/apperr"
	"github.com/acerestreamer/gateway/internal/streamid"
)

// category mirrors the XC get_live_categories response shape. XC clients
// expect category_id as a string even though this gateway's category_xc
// table assigns dense integer ids.
type category struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	ParentID     int    `json:"parent_id"`
}

// liveStream mirrors the XC get_live_streams response shape.
type liveStream struct {
	Num          int    `json:"num"`
	Name         string `json:"name"`
	StreamType   string `json:"stream_type"`
	StreamID     int    `json:"stream_id"`
	StreamIcon   string `json:"stream_icon"`
	EPGChannelID string `json:"epg_channel_id"`
	Added        string `json:"added"`
	CategoryID   string `json:"category_id"`
	CustomSid    string `json:"custom_sid"`
	TVArchive    int    `json:"tv_archive"`
	DirectSource string `json:"direct_source"`
	TVArchiveDur int    `json:"tv_archive_duration"`
}

type userInfo struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Auth           int    `json:"auth"`
	Status         string `json:"status"`
	ExpDate        string `json:"exp_date"`
	IsTrial        string `json:"is_trial"`
	ActiveCons     string `json:"active_cons"`
	MaxConnections string `json:"max_connections"`
}

type serverInfoResp struct {
	URL            string `json:"url"`
	Port           string `json:"port"`
	HTTPSPort      string `json:"https_port"`
	ServerProtocol string `json:"server_protocol"`
	TimezoneStr    string `json:"timezone"`
	TimeNow        string `json:"time_now"`
	Timestamp      int64  `json:"timestamp_now"`
}

type bareResp struct {
	UserInfo   userInfo       `json:"user_info"`
	ServerInfo serverInfoResp `json:"server_info"`
}

// ServePlayerAPI handles GET /player_api.php?action=…&username=&password=.
// Recognised actions: get_live_categories, get_live_streams (optionally
// scoped to a category_id), and the bare call (no action) which returns
// user/server info. Any other action is rejected with 501, matching
// spec.md §4.I's explicit scope cut.
func (f *FrontDoor) ServePlayerAPI(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := f.Credentials.VerifyCredentials(q.Get("username"), q.Get("password")); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	action := q.Get("action")
	switch action {
	case "":
		f.servePlayerAPIBare(w, q)
	case "get_live_categories":
		f.serveLiveCategories(w)
	case "get_live_streams":
		f.serveLiveStreams(w, q.Get("category_id"))
	default:
		f.log.Info().Str("action", action).Msg("player_api action not implemented")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotImplemented)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "action not implemented: " + action})
	}
}

func (f *FrontDoor) servePlayerAPIBare(w http.ResponseWriter, q url.Values) {
	resp := bareResp{
		UserInfo: userInfo{
			Username:       q.Get("username"),
			Auth:           1,
			Status:         "Active",
			IsTrial:        "0",
			ActiveCons:     "0",
			MaxConnections: "1",
		},
		ServerInfo: serverInfoResp{
			URL:            f.ServerInfo.URL,
			Port:           f.ServerInfo.Port,
			HTTPSPort:      f.ServerInfo.HTTPSPort,
			ServerProtocol: "http",
		},
	}
	writeJSON(w, resp)
}

func (f *FrontDoor) serveLiveCategories(w http.ResponseWriter) {
	entries, err := f.Catalog.ListCatalogEntries()
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "list catalog entries", err))
		return
	}

	seen := make(map[string]bool)
	out := make([]category, 0)
	for _, e := range entries {
		if e.GroupTitle == "" || seen[e.GroupTitle] {
			continue
		}
		seen[e.GroupTitle] = true
		id, err := f.Catalog.CategoryXCID(e.GroupTitle)
		if err != nil {
			continue
		}
		out = append(out, category{
			CategoryID:   strconv.Itoa(id),
			CategoryName: e.GroupTitle,
		})
	}
	writeJSON(w, out)
}

func (f *FrontDoor) serveLiveStreams(w http.ResponseWriter, categoryIDFilter string) {
	entries, err := f.Catalog.ListCatalogEntries()
	if err != nil {
		apperr.WriteHTTP(w, apperr.Wrap(apperr.Internal, "list catalog entries", err))
		return
	}
	entries = f.applyTitleOverrides(entries)
	titles := alternateTitles(entries)

	out := make([]liveStream, 0, len(entries))
	for _, e := range entries {
		categoryID, err := f.Catalog.CategoryXCID(e.GroupTitle)
		if err != nil {
			continue
		}
		categoryIDStr := strconv.Itoa(categoryID)
		if categoryIDFilter != "" && categoryIDFilter != categoryIDStr {
			continue
		}
		out = append(out, liveStream{
			Num:          e.XCID,
			Name:         titles[e.XCID],
			StreamType:   "live",
			StreamID:     e.XCID,
			StreamIcon:   f.tvgLogoURL(titles[e.XCID]),
			EPGChannelID: e.TVGID,
			Added:        strconv.FormatInt(e.LastScrapedTime.Unix(), 10),
			CategoryID:   categoryIDStr,
			DirectSource: "",
		})
	}
	writeJSON(w, out)
}

func (f *FrontDoor) tvgLogoURL(title string) string {
	return strings.TrimRight(f.ExternalOrigin, "/") + "/tvg-logo/" + streamid.Slugify(title)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
