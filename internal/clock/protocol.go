package clock

import (
	"encoding/json"
	"fmt"
)

// StatusOK is the resCode reported for an accepted command
const StatusOK = 200

// CmdType identifies a device command
type CmdType uint8

const (
	CmdGet CmdType = 0
	CmdSet CmdType = 1
)

func (t CmdType) String() string {
	switch t {
	case CmdGet:
		return "get"
	case CmdSet:
		return "set"
	default:
		return fmt.Sprintf("CmdType(%d)", uint8(t))
	}
}

// UnmarshalJSON rejects command types the device protocol does not define
func (t *CmdType) UnmarshalJSON(data []byte) error {
	var v uint8
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch CmdType(v) {
	case CmdGet, CmdSet:
		*t = CmdType(v)
		return nil
	default:
		return fmt.Errorf("unknown cmdType %d", v)
	}
}

// CmdCtx carries Set arguments
type CmdCtx struct {
	Value uint8 `json:"value"`
}

// Request is a command sent to the device
type Request struct {
	CmdType CmdType `json:"cmdType"`
	CmdNum  uint8   `json:"cmdNum"`
	CmdCtx  *CmdCtx `json:"cmdCtx,omitempty"`
}

// Response is the device reply to a Request. Data is only present in replies to Get.
type Response struct {
	ResCode uint16  `json:"resCode"`
	CmdType CmdType `json:"cmdType"`
	CmdNum  uint8   `json:"cmdNum"`
	Data    *uint8  `json:"data"`
}

// UnmarshalJSON requires resCode, cmdType and cmdNum to be present
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		ResCode *uint16  `json:"resCode"`
		CmdType *CmdType `json:"cmdType"`
		CmdNum  *uint8   `json:"cmdNum"`
		Data    *uint8   `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.ResCode == nil:
		return fmt.Errorf("missing field resCode")
	case raw.CmdType == nil:
		return fmt.Errorf("missing field cmdType")
	case raw.CmdNum == nil:
		return fmt.Errorf("missing field cmdNum")
	}

	*r = Response{
		ResCode: *raw.ResCode,
		CmdType: *raw.CmdType,
		CmdNum:  *raw.CmdNum,
		Data:    raw.Data,
	}
	return nil
}

func getRequest(num uint8) Request {
	return Request{CmdType: CmdGet, CmdNum: num}
}

func setRequest(num, value uint8) Request {
	return Request{CmdType: CmdSet, CmdNum: num, CmdCtx: &CmdCtx{Value: value}}
}
