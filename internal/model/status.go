package model

// Status labels as persisted in requests.status.  The order of Statuses is the
// usual lifecycle order, but transitions are driven by the caller and are not
// validated against it.
const (
	StatusNew             = "Новая"
	StatusInProgress      = "В процессе"
	StatusWaitingForParts = "Ожидание запчастей"
	StatusReadyForPickup  = "Готова к выдаче"
	StatusCompleted       = "Завершена"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []string{
	StatusNew,
	StatusInProgress,
	StatusWaitingForParts,
	StatusReadyForPickup,
	StatusCompleted,
}

// IsKnownStatus reports whether s is one of Statuses.
func IsKnownStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// StampsCompletion reports whether moving a request into status s records a
// completion date.
func StampsCompletion(s string) bool {
	return s == StatusReadyForPickup || s == StatusCompleted
}

// Device types offered at intake.  Anything else is stored as entered.
const (
	DeviceFridge         = "Холодильник"
	DeviceWashingMachine = "Стиральная машина"
	DeviceStove          = "Плита"
	DeviceMicrowave      = "Микроволновая печь"
	DeviceDishwasher     = "Посудомоечная машина"
	DeviceTV             = "Телевизор"
	DeviceAirConditioner = "Кондиционер"
	DeviceOther          = "Другое"
)

// DeviceTypes lists the fixed device enumeration.
var DeviceTypes = []string{
	DeviceFridge,
	DeviceWashingMachine,
	DeviceStove,
	DeviceMicrowave,
	DeviceDishwasher,
	DeviceTV,
	DeviceAirConditioner,
	DeviceOther,
}

// Roles stored in users.role.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleMaster   = "master"
	RoleManager  = "manager"
	RoleClient   = "client"
)
