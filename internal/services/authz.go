package services

import (
	"slices"

	"github.com/Gopher0727/LockDeal/internal/models"
)

// Actor 发起操作的用户
type Actor struct {
	UserID uint
	Role   models.Role
}

// Action 受权限控制的操作
type Action string

const (
	ActionCreateGroup      Action = "group.create"
	ActionJoinGroup        Action = "group.join"
	ActionLockGroup        Action = "group.lock"
	ActionAcceptGroup      Action = "group.accept"
	ActionConfirmPickup    Action = "group.confirm_pickup"
	ActionVerifyPickup     Action = "group.verify_pickup"
	ActionRegenerateOTP    Action = "group.regenerate_otp"
	ActionViewSellerQueues Action = "seller.queues"
	ActionManageProduct    Action = "product.manage"
	ActionRegisterSeller   Action = "seller.register"
	ActionRate             Action = "rating.create"
	ActionManageDeal       Action = "deal.manage"
)

type capability struct {
	roles []models.Role
	// ownerOnly 要求操作者即资源所属卖家
	ownerOnly bool
}

var capabilities = map[Action]capability{
	ActionCreateGroup:      {roles: []models.Role{models.RoleCustomer, models.RoleSeller}},
	ActionJoinGroup:        {roles: []models.Role{models.RoleCustomer}},
	ActionLockGroup:        {roles: []models.Role{models.RoleSeller}, ownerOnly: true},
	ActionAcceptGroup:      {roles: []models.Role{models.RoleSeller}, ownerOnly: true},
	ActionConfirmPickup:    {roles: []models.Role{models.RoleSeller}, ownerOnly: true},
	ActionVerifyPickup:     {roles: []models.Role{models.RoleSeller}, ownerOnly: true},
	ActionRegenerateOTP:    {roles: []models.Role{models.RoleCustomer}},
	ActionViewSellerQueues: {roles: []models.Role{models.RoleSeller}},
	ActionManageProduct:    {roles: []models.Role{models.RoleSeller}, ownerOnly: true},
	ActionRegisterSeller:   {roles: []models.Role{models.RoleSeller}},
	ActionRate:             {roles: []models.Role{models.RoleCustomer}},
	ActionManageDeal:       {roles: []models.Role{models.RoleSeller}, ownerOnly: true},
}

// Authorize 判断 actor 能否对属于 ownerID 的资源执行 act.
// ownerID 传 0 时只检查角色, 资源加载后再带上所属卖家检查一次
func Authorize(act Action, actor Actor, ownerID uint) error {
	c, ok := capabilities[act]
	if !ok {
		return forbiddenf("unknown action %s", act)
	}
	if actor.UserID == 0 {
		return forbiddenf("anonymous actor cannot %s", act)
	}

	if !slices.Contains(c.roles, actor.Role) {
		return forbiddenf("role %q cannot %s", actor.Role, act)
	}
	if c.ownerOnly && ownerID != 0 && ownerID != actor.UserID {
		return forbiddenf("user %d does not own this resource", actor.UserID)
	}
	return nil
}
