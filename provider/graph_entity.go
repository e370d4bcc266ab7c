package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tnqbao/gau-ads-orchestrator/apperr"
	"github.com/tnqbao/gau-ads-orchestrator/guard"
)

// EntityRef is the id/name pair returned for campaign, ad set and ad listings.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CopyOptions struct {
	DeepCopy     bool
	StatusOption string // ACTIVE, PAUSED or INHERITED_FROM_SOURCE
	RenameSuffix string
}

type pagedResponse[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

const pageLimit = 200

// listEdge follows "after" cursors until the edge is exhausted.
func listEdge[T any](ctx context.Context, g *GraphClient, op, path, accountID, token string, query url.Values) ([]T, error) {
	var out []T
	after := ""
	for {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(pageLimit))
		if after != "" {
			q.Set("after", after)
		}

		var page pagedResponse[T]
		err := g.do(ctx, request{
			op:        op,
			method:    http.MethodGet,
			path:      path,
			accountID: accountID,
			token:     token,
			query:     q,
		}, &page)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Data...)

		if page.Paging.Next == "" || page.Paging.Cursors.After == "" || len(page.Data) == 0 {
			return out, nil
		}
		after = page.Paging.Cursors.After
	}
}

func (g *GraphClient) ListAdSetAds(ctx context.Context, adSetID, accountID, token string) ([]EntityRef, error) {
	return listEdge[EntityRef](ctx, g, "list_adset_ads", adSetID+"/ads", accountID, token, url.Values{"fields": {"id,name"}})
}

func (g *GraphClient) ListCampaignAdSets(ctx context.Context, campaignID, accountID, token string) ([]EntityRef, error) {
	return listEdge[EntityRef](ctx, g, "list_campaign_adsets", campaignID+"/adsets", accountID, token, url.Values{"fields": {"id,name"}})
}

// ListAccountEdge reads campaigns, adsets or ads of an ad account with the requested fields.
func (g *GraphClient) ListAccountEdge(ctx context.Context, accountID, edge, fields, token string) ([]map[string]any, error) {
	return listEdge[map[string]any](ctx, g, "list_account_"+edge, AccountPath(accountID)+"/"+edge, accountID, token, url.Values{"fields": {fields}})
}

// GetObject reads fields of a single Graph object.
func (g *GraphClient) GetObject(ctx context.Context, objectID, fields, accountID, token string) (map[string]any, error) {
	var out map[string]any
	err := g.do(ctx, request{
		op:        "get_object",
		method:    http.MethodGet,
		path:      objectID,
		accountID: accountID,
		token:     token,
		query:     url.Values{"fields": {fields}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type copyResponse struct {
	CopiedAdSetID    string `json:"copied_adset_id"`
	CopiedCampaignID string `json:"copied_campaign_id"`
	CopiedAdID       string `json:"copied_ad_id"`
}

func copyForm(opts CopyOptions) url.Values {
	form := url.Values{"deep_copy": {strconv.FormatBool(opts.DeepCopy)}}
	if opts.StatusOption != "" {
		form.Set("status_option", opts.StatusOption)
	}
	if opts.RenameSuffix != "" {
		form.Set("rename_options", fmt.Sprintf(`{"rename_suffix":%q}`, opts.RenameSuffix))
	}
	return form
}

// CopyAdSet calls the native copy endpoint and returns the new ad set id.
func (g *GraphClient) CopyAdSet(ctx context.Context, adSetID, targetCampaignID, accountID, token string, opts CopyOptions) (string, error) {
	form := copyForm(opts)
	if targetCampaignID != "" {
		form.Set("campaign_id", targetCampaignID)
	}

	var resp copyResponse
	if err := g.do(ctx, request{
		op:        "copy_adset",
		method:    http.MethodPost,
		path:      adSetID + "/copies",
		accountID: accountID,
		token:     token,
		form:      form,
	}, &resp); err != nil {
		return "", err
	}
	if resp.CopiedAdSetID == "" {
		return "", missingID("copy_adset", "copied_adset_id")
	}
	return resp.CopiedAdSetID, nil
}

// CopyCampaign calls the native copy endpoint, which only works inside one ad account.
func (g *GraphClient) CopyCampaign(ctx context.Context, campaignID, accountID, token string, opts CopyOptions) (string, error) {
	var resp copyResponse
	if err := g.do(ctx, request{
		op:        "copy_campaign",
		method:    http.MethodPost,
		path:      campaignID + "/copies",
		accountID: accountID,
		token:     token,
		form:      copyForm(opts),
	}, &resp); err != nil {
		return "", err
	}
	if resp.CopiedCampaignID == "" {
		return "", missingID("copy_campaign", "copied_campaign_id")
	}
	return resp.CopiedCampaignID, nil
}

// CreateCampaign creates a campaign from explicit fields, used for cross-account copies.
func (g *GraphClient) CreateCampaign(ctx context.Context, accountID, token string, fields url.Values) (string, error) {
	var resp idResponse
	if err := g.do(ctx, request{
		op:        "create_campaign",
		method:    http.MethodPost,
		path:      AccountPath(accountID) + "/campaigns",
		accountID: accountID,
		token:     token,
		form:      fields,
	}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", missingID("create_campaign", "id")
	}
	return resp.ID, nil
}

func (g *GraphClient) Rename(ctx context.Context, objectID, name, accountID, token string) error {
	var resp idResponse
	return g.do(ctx, request{
		op:        "rename",
		method:    http.MethodPost,
		path:      objectID,
		accountID: accountID,
		token:     token,
		form:      url.Values{"name": {name}},
	}, &resp)
}

func missingID(op, field string) error {
	return &apperr.RemoteUploadError{
		Service:    guard.FacebookAPI,
		Operation:  op,
		StatusCode: http.StatusOK,
		Err:        fmt.Errorf("response carried no %s", field),
	}
}
