package device

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_ObjectOrArray(t *testing.T) {
	var single struct {
		Items List[cardInfo] `json:"CardInfo"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"CardInfo":{"cardNo":"1"}}`), &single))
	assert.Equal(t, List[cardInfo]{{CardNo: "1"}}, single.Items)

	var many struct {
		Items List[cardInfo] `json:"CardInfo"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"CardInfo":[{"cardNo":"1"},{"cardNo":"2"}]}`), &many))
	require.Len(t, many.Items, 2)
	assert.Equal(t, "2", many.Items[1].CardNo)

	var none struct {
		Items List[cardInfo] `json:"CardInfo"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"CardInfo":null}`), &none))
	assert.Empty(t, none.Items)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{name: "json code", body: `{"statusCode":1}`, ok: true},
		{name: "json string", body: `{"statusString":"OK"}`, ok: true},
		{name: "json failure", body: `{"statusCode":6,"statusString":"Invalid Content","subStatusCode":"badJsonContent"}`},
		{name: "xml ok", body: `<ResponseStatus><statusCode>1</statusCode><statusString>OK</statusString></ResponseStatus>`, ok: true},
		{name: "xml failure", body: `<ResponseStatus><statusCode>4</statusCode><statusString>Invalid Operation</statusString></ResponseStatus>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := parseStatus([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.ok, st.OK())
		})
	}

	_, err := parseStatus([]byte("  "))
	assert.Error(t, err)
}

func TestError_Duplicate(t *testing.T) {
	assert.True(t, (&Error{StatusString: "duplicate"}).IsDuplicate())
	assert.True(t, (&Error{StatusString: "Invalid Content", SubStatusCode: "employeeNoAlreadyExist"}).IsDuplicate())
	assert.False(t, (&Error{StatusString: "Invalid Content", SubStatusCode: "badJsonContent"}).IsDuplicate())

	assert.Equal(t, "Invalid Content (badJsonContent)", (&Error{StatusString: "Invalid Content", SubStatusCode: "badJsonContent"}).Diagnostic())
	assert.Equal(t, "HTTP 401", (&Error{HTTPStatus: 401}).Diagnostic())
}

func TestFlexInt(t *testing.T) {
	var e acsEvent
	require.NoError(t, json.Unmarshal([]byte(`{"major":"5","minor":76,"doorNo":null}`), &e))
	assert.Equal(t, flexInt(5), e.Major)
	assert.Equal(t, flexInt(76), e.Minor)
	assert.Equal(t, flexInt(0), e.DoorNo)
}
