package device

import (
	"context"
	"net/http"

	"hik-access-bridge/internal/models"
)

const userRecordPath = "/ISAPI/AccessControl/UserInfo/Record?format=json"

type userInfoBody struct {
	UserInfo userInfo `json:"UserInfo"`
}

type userInfo struct {
	EmployeeNo     string      `json:"employeeNo"`
	Name           string      `json:"name"`
	UserType       string      `json:"userType"`
	Valid          userValid   `json:"Valid"`
	DoorRight      string      `json:"doorRight"`
	RightPlan      []rightPlan `json:"RightPlan"`
	UserVerifyMode string      `json:"userVerifyMode"`
}

type userValid struct {
	Enable    bool   `json:"enable"`
	BeginTime string `json:"beginTime"`
	EndTime   string `json:"endTime"`
	TimeType  string `json:"timeType"`
}

type rightPlan struct {
	DoorNo         int    `json:"doorNo"`
	PlanTemplateNo string `json:"planTemplateNo"`
}

// userPayload shared by create and update so a duplicate retry sends identical content.
// Door 1 on plan template 1 is the terminal's 24h template.
func userPayload(rec models.DeviceUserRecord) userInfoBody {
	mode := rec.VerifyMode
	if mode == "" {
		mode = models.VerifyModeCardOrFace
	}
	return userInfoBody{UserInfo: userInfo{
		EmployeeNo: rec.EmployeeNo,
		Name:       rec.Name,
		UserType:   "normal",
		Valid: userValid{
			Enable:    true,
			BeginTime: rec.ValidBegin,
			EndTime:   rec.ValidEnd,
			TimeType:  "local",
		},
		DoorRight:      "1",
		RightPlan:      []rightPlan{{DoorNo: 1, PlanTemplateNo: "1"}},
		UserVerifyMode: mode,
	}}
}

// UpsertUser creates the user, or updates it when the employee number already exists.
func (c *Client) UpsertUser(ctx context.Context, rec models.DeviceUserRecord) (UpsertResult, error) {
	body := userPayload(rec)
	return c.upsert(ctx,
		request{op: "user.create", method: http.MethodPost, path: userRecordPath, body: body},
		request{op: "user.update", method: http.MethodPut, path: userRecordPath},
	)
}
