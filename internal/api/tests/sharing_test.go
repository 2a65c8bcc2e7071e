package api_test

import (
	"net/http"
	"testing"

	"github.com/rongwang/banking-server/internal/api/testutils"
	"github.com/rongwang/banking-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manageUser(accountID int64, stateID string, role models.Role) models.ManageUserRequest {
	req := models.ManageUserRequest{AccountID: accountID, TargetStateID: stateID}
	req.Values.Role = string(role)
	return req
}

func TestSharedAccount(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	ada := testCtx.JoinPlayer(t, 1, "Ada", "Lane")
	bo := testCtx.JoinPlayer(t, 2, "Bo", "Reyes")
	cy := testCtx.JoinPlayer(t, 3, "Cy", "Moss")

	sharedID := createAccount(t, testCtx, ada, "Crew", true)

	// Test case 1: Add a contributor
	w := testCtx.Call(t, ada, "addUserToAccount", models.AddUserRequest{
		AccountID: sharedID,
		StateID:   "SID2",
		Role:      "contributor",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var accounts []models.AccountView
	w = testCtx.Call(t, bo, "getAccounts", nil, &accounts)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, accounts, 1)
	assert.Equal(t, sharedID, accounts[0].ID)
	assert.Equal(t, models.RoleContributor, accounts[0].Role)
	assert.Equal(t, models.AccountShared, accounts[0].Type)
	assert.Equal(t, "Ada Lane", accounts[0].Owner)

	// Test case 2: Contributors deposit but do not withdraw
	w = testCtx.Call(t, bo, "depositMoney", balanceChange(sharedID, 80), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testCtx.Call(t, bo, "withdrawMoney", balanceChange(sharedID, 10), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testCtx.Call(t, bo, "addUserToAccount", models.AddUserRequest{AccountID: sharedID, StateID: "SID3", Role: "contributor"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Test case 3: Promote to manager
	w = testCtx.Call(t, ada, "manageUser", manageUser(sharedID, "SID2", models.RoleManager), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var balance models.BalanceResponse
	w = testCtx.Call(t, bo, "withdrawMoney", balanceChange(sharedID, 10), &balance)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(70), balance.Balance)

	w = testCtx.Call(t, bo, "addUserToAccount", models.AddUserRequest{AccountID: sharedID, StateID: "SID3", Role: "contributor"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Test case 4: Owner is never granted through member management
	w = testCtx.Call(t, ada, "manageUser", manageUser(sharedID, "SID2", models.RoleOwner), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_role", testutils.DecodeError(t, w).Code)

	w = testCtx.Call(t, ada, "addUserToAccount", models.AddUserRequest{AccountID: sharedID, StateID: "SID9", Role: "manager"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "state_id_not_exists", testutils.DecodeError(t, w).Code)

	// Test case 5: Listing
	var users models.AccessTableData
	w = testCtx.Call(t, cy, "getAccountUsers", models.PageRequest{AccountID: sharedID}, &users)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, users.NumberOfPages)
	require.Len(t, users.Users, 3)
	assert.Equal(t, models.AccessTableUser{Name: "Ada Lane", StateID: "SID1", Role: models.RoleOwner}, users.Users[0])
	assert.Equal(t, models.AccessTableUser{Name: "Bo Reyes", StateID: "SID2", Role: models.RoleManager}, users.Users[1])
	assert.Equal(t, models.AccessTableUser{Name: "Cy Moss", StateID: "SID3", Role: models.RoleContributor}, users.Users[2])

	w = testCtx.Call(t, cy, "getAccountUsers", models.PageRequest{AccountID: sharedID, Search: "reyes"}, &users)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "SID2", users.Users[0].StateID)

	// Test case 6: Managers cannot remove managers, owners can
	w = testCtx.Call(t, bo, "removeUser", models.RemoveUserRequest{AccountID: sharedID, TargetStateID: "SID1"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testCtx.Call(t, bo, "removeUser", models.RemoveUserRequest{AccountID: sharedID, TargetStateID: "SID3"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = testCtx.Call(t, cy, "getAccountUsers", models.PageRequest{AccountID: sharedID}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testCtx.Call(t, ada, "removeUser", models.RemoveUserRequest{AccountID: sharedID, TargetStateID: "SID3"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_target", testutils.DecodeError(t, w).Code)
}

func TestTransferOwnership(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	ada := testCtx.JoinPlayer(t, 1, "Ada", "Lane")
	bo := testCtx.JoinPlayer(t, 2, "Bo", "Reyes")

	sharedID := createAccount(t, testCtx, ada, "Crew", true)

	// Test case 1: Unknown state id changes nothing
	w := testCtx.Call(t, ada, "transferOwnership", models.TransferOwnershipRequest{AccountID: sharedID, TargetStateID: "SID404"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "state_id_not_exists", testutils.DecodeError(t, w).Code)

	// Test case 2: Self transfer
	w = testCtx.Call(t, ada, "transferOwnership", models.TransferOwnershipRequest{AccountID: sharedID, TargetStateID: "SID1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Test case 3: Only the owner transfers
	w = testCtx.Call(t, bo, "transferOwnership", models.TransferOwnershipRequest{AccountID: sharedID, TargetStateID: "SID2"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Test case 4: Successful transfer keeps the previous owner as manager
	w = testCtx.Call(t, ada, "transferOwnership", models.TransferOwnershipRequest{AccountID: sharedID, TargetStateID: "SID2"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var accounts []models.AccountView
	w = testCtx.Call(t, bo, "getAccounts", nil, &accounts)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, accounts, 1)
	assert.Equal(t, models.RoleOwner, accounts[0].Role)
	assert.Equal(t, "Bo Reyes", accounts[0].Owner)

	w = testCtx.Call(t, ada, "getAccounts", nil, &accounts)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, accounts, 1)
	assert.Equal(t, models.RoleManager, accounts[0].Role)

	w = testCtx.Call(t, ada, "transferOwnership", models.TransferOwnershipRequest{AccountID: sharedID, TargetStateID: "SID1"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
