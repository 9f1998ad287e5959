package walletv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "walletledger.v1.TransferService"

const (
	TransferService_InitiateTransfer_FullMethodName  = "/" + ServiceName + "/InitiateTransfer"
	TransferService_GetTransferStatus_FullMethodName = "/" + ServiceName + "/GetTransferStatus"
	TransferService_GetLimits_FullMethodName         = "/" + ServiceName + "/GetLimits"
	TransferService_GetWallet_FullMethodName         = "/" + ServiceName + "/GetWallet"
	TransferService_OpenWallet_FullMethodName        = "/" + ServiceName + "/OpenWallet"
	TransferService_SetSecret_FullMethodName         = "/" + ServiceName + "/SetSecret"
	TransferService_SetWalletLimits_FullMethodName   = "/" + ServiceName + "/SetWalletLimits"
	TransferService_ReleaseTransfer_FullMethodName   = "/" + ServiceName + "/ReleaseTransfer"
	TransferService_FundWallet_FullMethodName        = "/" + ServiceName + "/FundWallet"
	TransferService_ListTransactions_FullMethodName  = "/" + ServiceName + "/ListTransactions"
	TransferService_NameEnquiry_FullMethodName       = "/" + ServiceName + "/NameEnquiry"
)

// TransferServiceServer is the server API for TransferService.
type TransferServiceServer interface {
	InitiateTransfer(context.Context, *InitiateTransferRequest) (*InitiateTransferResponse, error)
	GetTransferStatus(context.Context, *GetTransferStatusRequest) (*GetTransferStatusResponse, error)
	GetLimits(context.Context, *GetLimitsRequest) (*GetLimitsResponse, error)
	GetWallet(context.Context, *GetWalletRequest) (*Wallet, error)
	OpenWallet(context.Context, *OpenWalletRequest) (*Wallet, error)
	SetSecret(context.Context, *SetSecretRequest) (*Empty, error)
	SetWalletLimits(context.Context, *SetWalletLimitsRequest) (*Wallet, error)
	ReleaseTransfer(context.Context, *ReleaseTransferRequest) (*ReleaseTransferResponse, error)
	FundWallet(context.Context, *FundWalletRequest) (*FundWalletResponse, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error)
	NameEnquiry(context.Context, *NameEnquiryRequest) (*NameEnquiryResponse, error)
}

// UnimplementedTransferServiceServer answers every method with codes.Unimplemented.
type UnimplementedTransferServiceServer struct{}

func (UnimplementedTransferServiceServer) InitiateTransfer(context.Context, *InitiateTransferRequest) (*InitiateTransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method InitiateTransfer not implemented")
}

func (UnimplementedTransferServiceServer) GetTransferStatus(context.Context, *GetTransferStatusRequest) (*GetTransferStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetTransferStatus not implemented")
}

func (UnimplementedTransferServiceServer) GetLimits(context.Context, *GetLimitsRequest) (*GetLimitsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLimits not implemented")
}

func (UnimplementedTransferServiceServer) GetWallet(context.Context, *GetWalletRequest) (*Wallet, error) {
	return nil, status.Error(codes.Unimplemented, "method GetWallet not implemented")
}

func (UnimplementedTransferServiceServer) OpenWallet(context.Context, *OpenWalletRequest) (*Wallet, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenWallet not implemented")
}

func (UnimplementedTransferServiceServer) SetSecret(context.Context, *SetSecretRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetSecret not implemented")
}

func (UnimplementedTransferServiceServer) SetWalletLimits(context.Context, *SetWalletLimitsRequest) (*Wallet, error) {
	return nil, status.Error(codes.Unimplemented, "method SetWalletLimits not implemented")
}

func (UnimplementedTransferServiceServer) ReleaseTransfer(context.Context, *ReleaseTransferRequest) (*ReleaseTransferResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReleaseTransfer not implemented")
}

func (UnimplementedTransferServiceServer) FundWallet(context.Context, *FundWalletRequest) (*FundWalletResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FundWallet not implemented")
}

func (UnimplementedTransferServiceServer) ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTransactions not implemented")
}

func (UnimplementedTransferServiceServer) NameEnquiry(context.Context, *NameEnquiryRequest) (*NameEnquiryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method NameEnquiry not implemented")
}

func RegisterTransferServiceServer(registrar grpc.ServiceRegistrar, server TransferServiceServer) {
	registrar.RegisterService(&TransferService_ServiceDesc, server)
}

func unaryHandler[Request any, Response any](fullMethod string, call func(TransferServiceServer, context.Context, *Request) (*Response, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		request := new(Request)
		if err := decode(request); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(server.(TransferServiceServer), ctx, request)
		}
		info := &grpc.UnaryServerInfo{Server: server, FullMethod: fullMethod}
		handler := func(ctx context.Context, request any) (any, error) {
			return call(server.(TransferServiceServer), ctx, request.(*Request))
		}
		return interceptor(ctx, request, info, handler)
	}
}

// TransferService_ServiceDesc describes TransferService for grpc.ServiceRegistrar.
var TransferService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransferServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InitiateTransfer", Handler: unaryHandler(TransferService_InitiateTransfer_FullMethodName, TransferServiceServer.InitiateTransfer)},
		{MethodName: "GetTransferStatus", Handler: unaryHandler(TransferService_GetTransferStatus_FullMethodName, TransferServiceServer.GetTransferStatus)},
		{MethodName: "GetLimits", Handler: unaryHandler(TransferService_GetLimits_FullMethodName, TransferServiceServer.GetLimits)},
		{MethodName: "GetWallet", Handler: unaryHandler(TransferService_GetWallet_FullMethodName, TransferServiceServer.GetWallet)},
		{MethodName: "OpenWallet", Handler: unaryHandler(TransferService_OpenWallet_FullMethodName, TransferServiceServer.OpenWallet)},
		{MethodName: "SetSecret", Handler: unaryHandler(TransferService_SetSecret_FullMethodName, TransferServiceServer.SetSecret)},
		{MethodName: "SetWalletLimits", Handler: unaryHandler(TransferService_SetWalletLimits_FullMethodName, TransferServiceServer.SetWalletLimits)},
		{MethodName: "ReleaseTransfer", Handler: unaryHandler(TransferService_ReleaseTransfer_FullMethodName, TransferServiceServer.ReleaseTransfer)},
		{MethodName: "FundWallet", Handler: unaryHandler(TransferService_FundWallet_FullMethodName, TransferServiceServer.FundWallet)},
		{MethodName: "ListTransactions", Handler: unaryHandler(TransferService_ListTransactions_FullMethodName, TransferServiceServer.ListTransactions)},
		{MethodName: "NameEnquiry", Handler: unaryHandler(TransferService_NameEnquiry_FullMethodName, TransferServiceServer.NameEnquiry)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "walletledger/v1/transfer.json",
}

// TransferServiceClient is the client API for TransferService.
type TransferServiceClient interface {
	InitiateTransfer(ctx context.Context, in *InitiateTransferRequest, opts ...grpc.CallOption) (*InitiateTransferResponse, error)
	GetTransferStatus(ctx context.Context, in *GetTransferStatusRequest, opts ...grpc.CallOption) (*GetTransferStatusResponse, error)
	GetLimits(ctx context.Context, in *GetLimitsRequest, opts ...grpc.CallOption) (*GetLimitsResponse, error)
	GetWallet(ctx context.Context, in *GetWalletRequest, opts ...grpc.CallOption) (*Wallet, error)
	OpenWallet(ctx context.Context, in *OpenWalletRequest, opts ...grpc.CallOption) (*Wallet, error)
	SetSecret(ctx context.Context, in *SetSecretRequest, opts ...grpc.CallOption) (*Empty, error)
	SetWalletLimits(ctx context.Context, in *SetWalletLimitsRequest, opts ...grpc.CallOption) (*Wallet, error)
	ReleaseTransfer(ctx context.Context, in *ReleaseTransferRequest, opts ...grpc.CallOption) (*ReleaseTransferResponse, error)
	FundWallet(ctx context.Context, in *FundWalletRequest, opts ...grpc.CallOption) (*FundWalletResponse, error)
	ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error)
	NameEnquiry(ctx context.Context, in *NameEnquiryRequest, opts ...grpc.CallOption) (*NameEnquiryResponse, error)
}

type transferServiceClient struct {
	connection grpc.ClientConnInterface
}

// NewTransferServiceClient returns a client that always uses the JSON codec.
func NewTransferServiceClient(connection grpc.ClientConnInterface) TransferServiceClient {
	return &transferServiceClient{connection: connection}
}

func invoke[Response any](ctx context.Context, connection grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Response, error) {
	out := new(Response)
	callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := connection.Invoke(ctx, method, in, out, callOptions...); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *transferServiceClient) InitiateTransfer(ctx context.Context, in *InitiateTransferRequest, opts ...grpc.CallOption) (*InitiateTransferResponse, error) {
	return invoke[InitiateTransferResponse](ctx, client.connection, TransferService_InitiateTransfer_FullMethodName, in, opts)
}

func (client *transferServiceClient) GetTransferStatus(ctx context.Context, in *GetTransferStatusRequest, opts ...grpc.CallOption) (*GetTransferStatusResponse, error) {
	return invoke[GetTransferStatusResponse](ctx, client.connection, TransferService_GetTransferStatus_FullMethodName, in, opts)
}

func (client *transferServiceClient) GetLimits(ctx context.Context, in *GetLimitsRequest, opts ...grpc.CallOption) (*GetLimitsResponse, error) {
	return invoke[GetLimitsResponse](ctx, client.connection, TransferService_GetLimits_FullMethodName, in, opts)
}

func (client *transferServiceClient) GetWallet(ctx context.Context, in *GetWalletRequest, opts ...grpc.CallOption) (*Wallet, error) {
	return invoke[Wallet](ctx, client.connection, TransferService_GetWallet_FullMethodName, in, opts)
}

func (client *transferServiceClient) OpenWallet(ctx context.Context, in *OpenWalletRequest, opts ...grpc.CallOption) (*Wallet, error) {
	return invoke[Wallet](ctx, client.connection, TransferService_OpenWallet_FullMethodName, in, opts)
}

func (client *transferServiceClient) SetSecret(ctx context.Context, in *SetSecretRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, client.connection, TransferService_SetSecret_FullMethodName, in, opts)
}

func (client *transferServiceClient) SetWalletLimits(ctx context.Context, in *SetWalletLimitsRequest, opts ...grpc.CallOption) (*Wallet, error) {
	return invoke[Wallet](ctx, client.connection, TransferService_SetWalletLimits_FullMethodName, in, opts)
}

func (client *transferServiceClient) ReleaseTransfer(ctx context.Context, in *ReleaseTransferRequest, opts ...grpc.CallOption) (*ReleaseTransferResponse, error) {
	return invoke[ReleaseTransferResponse](ctx, client.connection, TransferService_ReleaseTransfer_FullMethodName, in, opts)
}

func (client *transferServiceClient) FundWallet(ctx context.Context, in *FundWalletRequest, opts ...grpc.CallOption) (*FundWalletResponse, error) {
	return invoke[FundWalletResponse](ctx, client.connection, TransferService_FundWallet_FullMethodName, in, opts)
}

func (client *transferServiceClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	return invoke[ListTransactionsResponse](ctx, client.connection, TransferService_ListTransactions_FullMethodName, in, opts)
}

func (client *transferServiceClient) NameEnquiry(ctx context.Context, in *NameEnquiryRequest, opts ...grpc.CallOption) (*NameEnquiryResponse, error) {
	return invoke[NameEnquiryResponse](ctx, client.connection, TransferService_NameEnquiry_FullMethodName, in, opts)
}
