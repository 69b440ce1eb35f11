package mysql

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xiebiao/rentalhub/internal/infrastructure/config"
)

// NewDB 创建数据库连接
// 设计说明：
// 1. 使用GORM v2作为ORM框架，默认MySQL，database.driver=postgres时使用pgx驱动
// 2. 配置连接池参数（MaxOpenConns、MaxIdleConns、ConnMaxLifetime）
// 3. 开发环境开启SQL日志，生产环境关闭
// 4. 自动迁移表结构（AutoMigrate）
func NewDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info // 开发环境打印SQL
	}

	db, err := gorm.Open(dialector(cfg.Database), &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: time.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 学习要点：合理的连接池配置对性能至关重要
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取SQL DB失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	log.Info("数据库连接成功",
		zap.String("driver", cfg.Database.Driver),
		zap.String("host", cfg.Database.Host),
		zap.String("dbname", cfg.Database.DBName))

	// 注意：生产环境应使用专门的迁移工具（如golang-migrate）
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return db, nil
}

// dialector 按配置选择驱动
func dialector(cfg config.DatabaseConfig) gorm.Dialector {
	if cfg.Driver == "postgres" {
		return postgres.Open(cfg.DSN())
	}
	return mysql.Open(cfg.DSN())
}

// AutoMigrate 自动迁移表结构
// 学习要点：
// 1. AutoMigrate只会创建表、添加字段，不会删除或修改现有字段
// 2. 生产环境应使用版本化的迁移脚本，不要依赖AutoMigrate
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&ProductModel{},
		&RentalOrderModel{},
		&OrderLineModel{},
		&ReservationModel{},
		&NotificationLogModel{},
	)
}

// UserModel GORM用户模型
// 设计说明：
// 1. 这是infrastructure层的数据模型，包含GORM tag
// 2. domain/user/entity.go是领域实体，不依赖GORM
// 3. Repository负责两者之间的转换
type UserModel struct {
	ID        uint           `gorm:"primaryKey"`
	Email     string         `gorm:"uniqueIndex;size:100;not null;comment:邮箱"`
	Password  string         `gorm:"size:255;not null;comment:密码（bcrypt加密）"`
	Nickname  string         `gorm:"size:50;not null;comment:昵称"`
	Role      string         `gorm:"size:20;not null;default:customer;comment:角色(admin/vendor/customer)"`
	CreatedAt time.Time      `gorm:"comment:创建时间"`
	UpdatedAt time.Time      `gorm:"comment:更新时间"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间（软删除）"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// ProductModel GORM商品模型
// 设计说明:
// 1. 日租金使用int64存储"分"为单位(避免浮点数精度问题)
// 2. quantity_on_hand只在补货/报损时变化,预留不扣减
// 3. 订单确认时对本行加排他锁(SELECT ... FOR UPDATE)
type ProductModel struct {
	ID             uint           `gorm:"primaryKey"`
	VendorID       uint           `gorm:"index;not null;comment:出租方用户ID"`
	Name           string         `gorm:"index:idx_search;size:200;not null;comment:商品名称"`
	Description    string         `gorm:"type:text;comment:商品描述"`
	DailyRate      int64          `gorm:"not null;comment:日租金(分)"`
	QuantityOnHand int            `gorm:"not null;default:0;comment:实物数量"`
	CreatedAt      time.Time      `gorm:"index;comment:创建时间"`
	UpdatedAt      time.Time      `gorm:"comment:更新时间"`
	DeletedAt      gorm.DeletedAt `gorm:"index;comment:删除时间(软删除)"`
}

// TableName 指定表名
func (ProductModel) TableName() string {
	return "products"
}

// RentalOrderModel GORM租赁订单模型
// 教学要点:
// 1. 与OrderLineModel是一对多关系
// 2. OrderNo有唯一索引(业务主键)
// 3. (status, end_at)复合索引服务于到期扫描
type RentalOrderModel struct {
	ID             uint                `gorm:"primaryKey"`
	OrderNo        string              `gorm:"uniqueIndex;size:32;not null;comment:订单号"`
	CustomerID     uint                `gorm:"index;not null;comment:租客用户ID"`
	VendorID       uint                `gorm:"index;not null;comment:出租方用户ID"`
	Status         int                 `gorm:"index:idx_status_end;not null;default:1;comment:订单状态(1报价2已发送3已确认4租用中5已归还6已取消)"`
	StartAt        time.Time           `gorm:"not null;comment:租期开始"`
	EndAt          time.Time           `gorm:"index:idx_status_end;not null;comment:计划归还时间"`
	TotalAmount    int64               `gorm:"not null;comment:订单总金额(分)"`
	LateFee        decimal.NullDecimal `gorm:"type:decimal(12,2);comment:滞纳金(元)"`
	CouponCode     string              `gorm:"size:50;comment:优惠码"`
	SentAt         *time.Time          `gorm:"comment:发送时间"`
	ConfirmedAt    *time.Time          `gorm:"comment:确认时间"`
	PickedUpAt     *time.Time          `gorm:"comment:取货时间"`
	ActualReturnAt *time.Time          `gorm:"comment:实际归还时间"`
	CancelledAt    *time.Time          `gorm:"comment:取消时间"`
	Lines          []OrderLineModel    `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time           `gorm:"index;comment:创建时间"`
	UpdatedAt      time.Time           `gorm:"comment:更新时间"`
}

// TableName 指定表名
func (RentalOrderModel) TableName() string {
	return "rental_orders"
}

// OrderLineModel GORM订单行模型
// 记录下单时的日租金快照(UnitPrice字段)
type OrderLineModel struct {
	ID        uint      `gorm:"primaryKey"`
	OrderID   uint      `gorm:"index;not null;comment:订单ID"`
	ProductID uint      `gorm:"index;not null;comment:商品ID"`
	Quantity  int       `gorm:"not null;comment:租用数量"`
	UnitPrice int64     `gorm:"not null;comment:下单时日租金(分)"`
	StartAt   time.Time `gorm:"not null;comment:租期开始"`
	EndAt     time.Time `gorm:"not null;comment:租期结束"`
	Amount    int64     `gorm:"not null;comment:行金额(分)"`
}

// TableName 指定表名
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ReservationModel GORM预留模型
// 教学要点:
// 1. order_line_id唯一索引:每个订单行最多一条预留
// 2. (product_id, status, start_at, end_at)复合索引服务于重叠查询
// 3. 释放只改status,不删除行
type ReservationModel struct {
	ID          uint       `gorm:"primaryKey"`
	ProductID   uint       `gorm:"index:idx_overlap,priority:1;not null;comment:商品ID"`
	OrderID     uint       `gorm:"index;not null;comment:订单ID"`
	OrderLineID uint       `gorm:"uniqueIndex;not null;comment:订单行ID"`
	Quantity    int        `gorm:"not null;comment:预留数量"`
	Status      string     `gorm:"index:idx_overlap,priority:2;size:16;not null;comment:状态(ACTIVE/RELEASED)"`
	StartAt     time.Time  `gorm:"index:idx_overlap,priority:3;not null;comment:开始时间"`
	EndAt       time.Time  `gorm:"index:idx_overlap,priority:4;not null;comment:结束时间"`
	CreatedAt   time.Time  `gorm:"comment:创建时间"`
	ReleasedAt  *time.Time `gorm:"comment:释放时间"`
}

// TableName 指定表名
func (ReservationModel) TableName() string {
	return "reservations"
}

// NotificationLogModel GORM通知记录模型
// (order_id, kind)唯一索引保证同一订单同一阈值只记录一次
type NotificationLogModel struct {
	ID        uint      `gorm:"primaryKey"`
	OrderID   uint      `gorm:"uniqueIndex:uk_order_kind,priority:1;not null;comment:订单ID"`
	Kind      string    `gorm:"uniqueIndex:uk_order_kind,priority:2;size:16;not null;comment:提醒类型"`
	EventID   string    `gorm:"size:36;not null;comment:事件ID"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

// TableName 指定表名
func (NotificationLogModel) TableName() string {
	return "notification_logs"
}
