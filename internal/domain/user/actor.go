package user

// Actor 当前操作者（认证上下文）
// 设计说明：
// 1. 由认证中间件从JWT Claims构造，显式传入领域操作
// 2. Vendor/Customer的档案ID即用户ID，订单上的VendorID/CustomerID直接与之比较
// 3. 零值Actor表示匿名，任何受保护的操作都会被拒绝
type Actor struct {
	Role   Role
	UserID uint
}

// AdminActor 构造管理员操作者（后台任务使用）
func AdminActor(userID uint) Actor {
	return Actor{Role: RoleAdmin, UserID: userID}
}

// VendorActor 构造出租方操作者
func VendorActor(vendorID uint) Actor {
	return Actor{Role: RoleVendor, UserID: vendorID}
}

// CustomerActor 构造租客操作者
func CustomerActor(customerID uint) Actor {
	return Actor{Role: RoleCustomer, UserID: customerID}
}

// IsAdmin 是否为管理员
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin && a.UserID != 0
}

// IsVendor 是否为指定出租方本人
func (a Actor) IsVendor(vendorID uint) bool {
	return a.Role == RoleVendor && a.UserID != 0 && a.UserID == vendorID
}

// IsCustomer 是否为指定租客本人
func (a Actor) IsCustomer(customerID uint) bool {
	return a.Role == RoleCustomer && a.UserID != 0 && a.UserID == customerID
}

// IsAnonymous 是否匿名
func (a Actor) IsAnonymous() bool {
	return a.UserID == 0 || !a.Role.IsValid()
}
