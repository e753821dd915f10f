package models

// Ride mirrors the rides table written by the importer. Column names follow
// the export format, so imported documents map onto them directly; the
// msgpack names match the keys of rows kept in the bolt store.
type Ride struct {
	ID            int64    `gorm:"primaryKey;autoIncrement" json:"id"                      msgpack:"id"`
	Name          *string  `gorm:"type:text"                json:"name,omitempty"          msgpack:"name"`
	CreatedDate   *int64   `                                json:"createdDate,omitempty"   msgpack:"created_date"`
	UpdatedDate   *int64   `                                json:"updatedDate,omitempty"   msgpack:"updated_date"`
	State         *int64   `                                json:"state,omitempty"         msgpack:"state"`
	ActivatedDate *int64   `                                json:"activatedDate,omitempty" msgpack:"activated_date"`
	Duration      *int64   `                                json:"duration,omitempty"      msgpack:"duration"`
	Distance      *float64 `                                json:"distance,omitempty"      msgpack:"distance"`

	Logs []Log `gorm:"foreignKey:RideID;constraint:OnDelete:CASCADE" json:"logs,omitempty" msgpack:"-"`
}

func (Ride) TableName() string {
	return "rides"
}

// Log is one telemetry sample of a ride.
type Log struct {
	ID           int64    `gorm:"primaryKey;autoIncrement"        json:"id"                     msgpack:"id"`
	RideID       int64    `gorm:"not null;index:idx_logs_ride_id" json:"rideId"                 msgpack:"ride_id"`
	RecordedDate *int64   `gorm:"index:idx_logs_ride_id"          json:"recordedDate,omitempty" msgpack:"recorded_date"`
	Lat          *float64 `                                       json:"lat,omitempty"          msgpack:"lat"`
	Lon          *float64 `                                       json:"lon,omitempty"          msgpack:"lon"`
	Ele          *float64 `                                       json:"ele,omitempty"          msgpack:"ele"`
	LogDuration  *int64   `                                       json:"logDuration,omitempty"  msgpack:"log_duration"`
	LogDistance  *float64 `                                       json:"logDistance,omitempty"  msgpack:"log_distance"`
	Speed        *float64 `                                       json:"speed,omitempty"        msgpack:"speed"`
	Cadence      *float64 `                                       json:"cadence,omitempty"      msgpack:"cadence"`
	HeartRate    *int64   `                                       json:"heartRate,omitempty"    msgpack:"heart_rate"`
}

func (Log) TableName() string {
	return "logs"
}
