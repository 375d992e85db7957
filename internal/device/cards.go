package device

import (
	"context"
	"encoding/json"
	"net/http"

	"hik-access-bridge/internal/models"
)

const (
	cardRecordPath = "/ISAPI/AccessControl/CardInfo/Record?format=json"
	cardModifyPath = "/ISAPI/AccessControl/CardInfo/Modify?format=json"
	cardSearchPath = "/ISAPI/AccessControl/CardInfo/Search?format=json"
	cardDeletePath = "/ISAPI/AccessControl/CardInfo/Delete?format=json"

	cardSearchLimit = 10
	noMatch         = "NO MATCH"
)

type cardInfo struct {
	EmployeeNo string `json:"employeeNo"`
	CardNo     string `json:"cardNo"`
	CardType   string `json:"cardType"`
}

type cardInfoBody struct {
	CardInfo cardInfo `json:"CardInfo"`
}

type employeeNoRef struct {
	EmployeeNo string `json:"employeeNo"`
}

type cardSearchBody struct {
	CardInfoSearchCond struct {
		SearchID             string          `json:"searchID"`
		SearchResultPosition int             `json:"searchResultPosition"`
		MaxResults           int             `json:"maxResults"`
		EmployeeNoList       []employeeNoRef `json:"EmployeeNoList"`
	} `json:"CardInfoSearchCond"`
}

type cardSearchResponse struct {
	CardInfoSearch struct {
		SearchID           string         `json:"searchID"`
		ResponseStatusStrg string         `json:"responseStatusStrg"`
		NumOfMatches       int            `json:"numOfMatches"`
		TotalMatches       int            `json:"totalMatches"`
		CardInfo           List[cardInfo] `json:"CardInfo"`
	} `json:"CardInfoSearch"`
}

type cardNoRef struct {
	CardNo string `json:"cardNo"`
}

// EmployeeNoList is rejected as "Invalid Content" on delete; only the card list is sent.
type cardDeleteBody struct {
	CardInfoDelCond struct {
		CardNoList []cardNoRef `json:"CardNoList"`
	} `json:"CardInfoDelCond"`
}

// UpsertCard binds a card to a user, updating the binding when the card already exists.
func (c *Client) UpsertCard(ctx context.Context, card models.CardBinding) (UpsertResult, error) {
	cardType := card.CardType
	if cardType == "" {
		cardType = models.CardTypeNormal
	}
	body := cardInfoBody{CardInfo: cardInfo{
		EmployeeNo: card.EmployeeNo,
		CardNo:     card.CardNo,
		CardType:   cardType,
	}}
	return c.upsert(ctx,
		request{op: "card.create", method: http.MethodPost, path: cardRecordPath, body: body},
		request{op: "card.update", method: http.MethodPut, path: cardModifyPath},
	)
}

// SearchCards lists the cards bound to employeeNo; none is an empty slice, not an error.
func (c *Client) SearchCards(ctx context.Context, employeeNo string) ([]models.CardBinding, error) {
	var body cardSearchBody
	body.CardInfoSearchCond.SearchID = c.newSearchID()
	body.CardInfoSearchCond.SearchResultPosition = 0
	body.CardInfoSearchCond.MaxResults = cardSearchLimit
	body.CardInfoSearchCond.EmployeeNoList = []employeeNoRef{{EmployeeNo: employeeNo}}

	var resp cardSearchResponse
	err := c.query(ctx,
		request{op: "card.search", method: http.MethodPost, path: cardSearchPath, body: body},
		func(raw []byte) error { return json.Unmarshal(raw, &resp) },
	)
	if err != nil {
		return nil, err
	}

	cards := make([]models.CardBinding, 0, len(resp.CardInfoSearch.CardInfo))
	if resp.CardInfoSearch.ResponseStatusStrg == noMatch {
		return cards, nil
	}
	for _, ci := range resp.CardInfoSearch.CardInfo {
		cards = append(cards, models.CardBinding{
			EmployeeNo: ci.EmployeeNo,
			CardNo:     ci.CardNo,
			CardType:   ci.CardType,
		})
	}
	return cards, nil
}

// DeleteCard removes a card by number.
func (c *Client) DeleteCard(ctx context.Context, cardNo string) error {
	var body cardDeleteBody
	body.CardInfoDelCond.CardNoList = []cardNoRef{{CardNo: cardNo}}
	return c.command(ctx, request{op: "card.delete", method: http.MethodPut, path: cardDeletePath, body: body})
}
