package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleAssignmentOf(t *testing.T) {
	auditor := "auditor-1"
	qc := "qc-1"
	sales := "sales-1"
	manager := "manager-1"
	shop := &Shop{
		AssignedTo:          &auditor,
		AssignedQC:          &qc,
		AssignedSalesperson: &sales,
		AssignedManagerID:   &manager,
	}

	assert.Equal(t, &auditor, RoleAuditor.AssignmentOf(shop))
	assert.Equal(t, &qc, RoleQC.AssignmentOf(shop))
	assert.Equal(t, &sales, RoleSaleperson.AssignmentOf(shop))
	assert.Equal(t, &manager, RoleManager.AssignmentOf(shop))
	assert.Nil(t, RoleAdmin.AssignmentOf(shop))
}

func TestRoleCanVisit(t *testing.T) {
	assert.True(t, RoleAuditor.CanVisit())
	assert.True(t, RoleQC.CanVisit())
	assert.True(t, RoleSaleperson.CanVisit())
	assert.False(t, RoleManager.CanVisit())
	assert.False(t, RoleAdmin.CanVisit())
}

func TestRoleMarkVisitedIndependentFlags(t *testing.T) {
	shop := &Shop{}
	RoleAuditor.MarkVisited(shop, "auditor-1", 1700000000)

	assert.True(t, shop.Visited)
	assert.Equal(t, "auditor-1", *shop.VisitedBy)
	assert.Equal(t, int64(1700000000), *shop.VisitedAt)
	// A shop can be visited by the auditor and still pending for QC and
	// sales.
	assert.False(t, shop.VisitedByQC)
	assert.False(t, shop.VisitedBySaleperson)

	RoleQC.MarkVisited(shop, "qc-1", 1700000100)
	assert.True(t, shop.VisitedByQC)
	assert.False(t, shop.VisitedBySaleperson)

	assert.True(t, RoleAuditor.VisitedOn(shop))
	assert.True(t, RoleQC.VisitedOn(shop))
	assert.False(t, RoleSaleperson.VisitedOn(shop))

	// Managers never flip visit flags.
	before := *shop
	RoleManager.MarkVisited(shop, "manager-1", 1700000200)
	assert.Equal(t, before, *shop)
}

func TestRoleCanCreate(t *testing.T) {
	assert.True(t, RoleAdmin.CanCreate(RoleAdmin))
	assert.True(t, RoleAdmin.CanCreate(RoleAuditor))
	assert.True(t, RoleManager.CanCreate(RoleAuditor))
	assert.False(t, RoleManager.CanCreate(RoleAdmin))
	assert.False(t, RoleManager.CanCreate(RoleManager))
	assert.True(t, RoleExecutive.CanCreate(RoleAuditor))
	assert.False(t, RoleAuditor.CanCreate(RoleAuditor))
}

func TestShopRadiusMeters(t *testing.T) {
	shop := &Shop{}
	assert.Equal(t, 30.0, shop.RadiusMeters())

	override := 50.0
	shop.RadiusThreshold = &override
	assert.Equal(t, 50.0, shop.RadiusMeters())
}

func TestShopReferenceRequiresBothCoordinates(t *testing.T) {
	lat := 12.9716
	lng := 77.5946

	shop := &Shop{GPSNorth: &lat}
	assert.Nil(t, shop.Reference())

	shop.GPSEast = &lng
	ref := shop.Reference()
	assert.NotNil(t, ref)
	assert.Equal(t, lat, ref.Latitude)
	assert.Equal(t, lng, ref.Longitude)
	assert.Equal(t, 30.0, ref.RadiusMeters)
}
