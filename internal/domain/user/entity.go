package user

import (
	"time"
)

// Role 用户角色
// 教学要点：角色决定能执行哪些订单动作（见rental用例中的权限矩阵）
type Role string

const (
	RoleAdmin    Role = "admin"    // 平台管理员
	RoleVendor   Role = "vendor"   // 出租方（发布商品、发货、收货）
	RoleCustomer Role = "customer" // 租客（下单、确认、取消）
)

// IsValid 判断角色是否合法
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleVendor, RoleCustomer:
		return true
	}
	return false
}

// User 用户实体（聚合根）
// DDD设计说明：
// 1. User是用户聚合的根实体，包含用户的核心属性
// 2. 密码已加密存储（bcrypt），不应该有GetPassword()等方法暴露明文
// 3. 领域实体不依赖GORM tag（infrastructure层的Repository实现时会处理映射）
type User struct {
	ID        uint
	Email     string
	Password  string // bcrypt哈希值
	Nickname  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser 创建新用户（工厂方法）
// hashedPassword必须是bcrypt加密后的密码
func NewUser(email, hashedPassword, nickname string, role Role) *User {
	now := time.Now()
	return &User{
		Email:     email,
		Password:  hashedPassword,
		Nickname:  nickname,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateNickname 更新昵称（领域行为）
func (u *User) UpdateNickname(nickname string) {
	u.Nickname = nickname
	u.UpdatedAt = time.Now()
}

// Actor 返回该用户的认证上下文
func (u *User) Actor() Actor {
	return Actor{Role: u.Role, UserID: u.ID}
}
