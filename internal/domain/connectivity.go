package domain

type ConnectivityMode string

const (
	ModeAuto          ConnectivityMode = "auto"
	ModeForcedOnline  ConnectivityMode = "online"
	ModeForcedOffline ConnectivityMode = "offline"
)

type ConnectivityStatus struct {
	Online bool             `json:"online"`
	Mode   ConnectivityMode `json:"mode"`
}

type SetConnectivityRequest struct {
	Mode ConnectivityMode `json:"mode" validate:"required,oneof=auto online offline"`
}
