package face

import (
	"context"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/models"
)

// deleteOnlyLibrary accepts deletes and fails searches with searchErr.
type deleteOnlyLibrary struct {
	searchErr error
}

func (l *deleteOnlyLibrary) UploadFace(context.Context, string, string) (device.UpsertResult, error) {
	return device.Created, nil
}

func (l *deleteOnlyLibrary) SearchFace(_ context.Context, employeeNo string) (models.FaceEnrollment, error) {
	return models.FaceEnrollment{EmployeeNo: employeeNo}, l.searchErr
}

func (l *deleteOnlyLibrary) DeleteFace(context.Context, string) error { return nil }
