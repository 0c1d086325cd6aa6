package transport

import "github.com/wukong-cloud/metainfo/util/uerror"

const codeStatusOK = "ok"

// GetResponse builds the reply to req. The header carries only framework keys
// and, once the handler returns, the backward metainfo of the call.
func GetResponse(req *Request, bs []byte, err error) *Response {
	resp := &Response{
		RequestId:  req.RequestId,
		Body:       bs,
		Meta:       Header{EncodeType: req.Meta.Get(EncodeType)},
		Code:       uerror.CodeOK,
		CodeStatus: codeStatusOK,
	}
	if err != nil {
		werr := uerror.ParseError(err)
		resp.Code = werr.Code
		resp.CodeStatus = werr.ErrMsg
	}
	return resp
}

// Err converts a non-OK response back into a *uerror.Error.
func (resp *Response) Err() error {
	if resp.Code == 0 || resp.Code == uerror.CodeOK {
		return nil
	}
	return uerror.NewError(resp.Code, resp.CodeStatus)
}
